package camera

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
	transmitting, err := f.sim.Transmitting(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, transmitting, test.ShouldBeTrue)

	f.sim.ResetCalls()
	test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
	test.That(t, f.sim.Calls(), test.ShouldNotContain, "StartTransmission")

	test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
	transmitting, err = f.sim.Transmitting(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, transmitting, test.ShouldBeFalse)

	t.Run("direct", func(t *testing.T) {
		test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
		defer func() { test.That(t, f.cam.SetShadow(true), test.ShouldBeNil) }()

		test.That(t, f.sim.StartTransmission(ctx), test.ShouldBeNil)
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeTrue)

		test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
		transmitting, err := f.sim.Transmitting(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, transmitting, test.ShouldBeFalse)
		running, err = f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeFalse)
	})

	t.Run("hardware failure keeps the shadow", func(t *testing.T) {
		f.driver.StartTransmissionFunc = func(context.Context) error {
			return errBoom
		}
		defer func() { f.driver.StartTransmissionFunc = nil }()
		err := f.cam.SetRunning(ctx, true)
		test.That(t, errors.Is(err, ErrHardwareCallFailed), test.ShouldBeTrue)
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeFalse)
	})
}

func TestSingleShot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetSingleShot(ctx, true), test.ShouldBeNil)
	test.That(t, f.sim.Calls(), test.ShouldBeEmpty)

	test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
	armed, err := f.sim.OneShot(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, armed, test.ShouldBeTrue)
	running, err := f.cam.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeTrue)

	// The camera clears the register once the frame is sent.
	f.sim.Deliver(1)
	running, err = f.cam.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeFalse)
	singleShot, err := f.cam.SingleShot(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, singleShot, test.ShouldBeTrue)

	_, _, err = f.cam.NextFrame(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.cam.ReleaseFrame(ctx), test.ShouldBeNil)

	t.Run("state peeks at the register", func(t *testing.T) {
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		f.sim.AutoClear()
		s, err := f.cam.State(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Running, test.ShouldBeFalse)
	})

	t.Run("stopping clears a pending shot", func(t *testing.T) {
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
		armed, err := f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeFalse)
	})

	t.Run("direct", func(t *testing.T) {
		test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
		defer func() { test.That(t, f.cam.SetShadow(true), test.ShouldBeNil) }()

		test.That(t, f.sim.SetOneShot(ctx, true), test.ShouldBeNil)
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeTrue)
		singleShot, err := f.cam.SingleShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, singleShot, test.ShouldBeTrue)

		test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
		armed, err := f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeFalse)

		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		armed, err = f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeTrue)
		test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
	})
}

func TestSwitchAcquisition(t *testing.T) {
	ctx := context.Background()

	t.Run("continuous to single shot", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		test.That(t, f.cam.SetSingleShot(ctx, true), test.ShouldBeNil)

		transmitting, err := f.sim.Transmitting(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, transmitting, test.ShouldBeFalse)
		armed, err := f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeTrue)
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeTrue)
	})

	t.Run("pending shot to continuous", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		test.That(t, f.cam.SetSingleShot(ctx, true), test.ShouldBeNil)
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		test.That(t, f.cam.SetSingleShot(ctx, false), test.ShouldBeNil)

		transmitting, err := f.sim.Transmitting(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, transmitting, test.ShouldBeTrue)
		armed, err := f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeFalse)
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeTrue)
	})

	t.Run("taken shot to continuous", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		test.That(t, f.cam.SetSingleShot(ctx, true), test.ShouldBeNil)
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		f.sim.AutoClear()
		f.sim.ResetCalls()
		test.That(t, f.cam.SetSingleShot(ctx, false), test.ShouldBeNil)

		test.That(t, f.sim.Calls(), test.ShouldNotContain, "StartTransmission")
		running, err := f.cam.Running(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, running, test.ShouldBeFalse)
		singleShot, err := f.cam.SingleShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, singleShot, test.ShouldBeFalse)
	})

	t.Run("direct", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
		test.That(t, f.sim.StartTransmission(ctx), test.ShouldBeNil)
		test.That(t, f.cam.SetSingleShot(ctx, true), test.ShouldBeNil)
		transmitting, err := f.sim.Transmitting(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, transmitting, test.ShouldBeFalse)
		armed, err := f.sim.OneShot(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, armed, test.ShouldBeTrue)

		test.That(t, f.cam.SetSingleShot(ctx, false), test.ShouldBeNil)
		transmitting, err = f.sim.Transmitting(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, transmitting, test.ShouldBeTrue)
	})
}
