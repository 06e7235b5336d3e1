package camera

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/dcam/sim"
	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/packet"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
)

func TestRequiresReconnect(t *testing.T) {
	conf := format7Config()
	quantum := packet.Quantum{Unit: 8, Max: 4096}
	base := state.CameraState{
		NumFrameBuffers: 10,
		Width:           1024,
		Height:          768,
		Coding:          pixel.Mono8,
		FrameRate:       1 / (125e-6 * 192),
		Shutter:         0.01,
	}

	for _, tc := range []struct {
		name   string
		change func(*state.CameraState)
		expect bool
	}{
		{"nothing", func(*state.CameraState) {}, false},
		{"buffers", func(s *state.CameraState) { s.NumFrameBuffers = 4 }, true},
		{"width", func(s *state.CameraState) { s.Width = 640 }, true},
		{"height", func(s *state.CameraState) { s.Height = 480 }, true},
		{"offset", func(s *state.CameraState) { s.Left, s.Top = 8, 8 }, false},
		{"shutter", func(s *state.CameraState) { s.Shutter = 0.02 }, false},
		{"running", func(s *state.CameraState) { s.Running = true }, false},
		{"coding of another depth", func(s *state.CameraState) { s.Coding = pixel.Mono16 }, true},
		{"invalid coding", func(s *state.CameraState) { s.Coding = pixel.Raw8 }, true},
		{"rate changing the packet size", func(s *state.CameraState) { s.FrameRate = 30 }, true},
		{"rate within the same packet size", func(s *state.CameraState) { s.FrameRate += 1e-9 }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			next := base
			tc.change(&next)
			test.That(t, RequiresReconnect(base, next, conf, quantum), test.ShouldEqual, tc.expect)
		})
	}

	t.Run("same depth coding", func(t *testing.T) {
		old := base
		old.Coding = pixel.YUV422
		next := base
		next.Coding = pixel.Mono16
		test.That(t, RequiresReconnect(old, next, conf, quantum), test.ShouldBeFalse)
	})

	t.Run("format 0 rates never reconnect", func(t *testing.T) {
		next := base
		next.FrameRate = 7.5
		test.That(t, RequiresReconnect(base, next, format0Config(), packet.Quantum{}), test.ShouldBeFalse)
	})
}

func TestStructuralChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
	f.sim.ResetCalls()

	test.That(t, f.cam.SetNumFrameBuffers(ctx, 4), test.ShouldBeNil)
	calls := f.sim.Calls()
	stop := lo.IndexOf(calls, "StopTransmission")
	disconnect := lo.IndexOf(calls, "Disconnect")
	connect := lo.IndexOf(calls, "Connect")
	test.That(t, stop, test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, stop, test.ShouldBeLessThan, disconnect)
	test.That(t, disconnect, test.ShouldBeLessThan, connect)
	test.That(t, lo.LastIndexOf(calls, "StartTransmission"), test.ShouldBeGreaterThan, connect)

	// 1.5 periods at 192 packets of 125us.
	test.That(t, len(f.clock.naps), test.ShouldEqual, 1)
	test.That(t, f.clock.naps[0].Seconds(), test.ShouldAlmostEqual, 0.036, 1e-6)

	n, err := f.cam.NumFrameBuffers()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 4)
	test.That(t, f.sim.Setup().NumBuffers, test.ShouldEqual, 4)
	running, err := f.cam.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeTrue)

	t.Run("unchanged count does nothing", func(t *testing.T) {
		f.sim.ResetCalls()
		test.That(t, f.cam.SetNumFrameBuffers(ctx, 4), test.ShouldBeNil)
		test.That(t, f.reconnected(), test.ShouldBeFalse)
	})

	t.Run("at least two buffers", func(t *testing.T) {
		test.That(t, f.cam.SetNumFrameBuffers(ctx, 1), test.ShouldBeNil)
		n, err := f.cam.NumFrameBuffers()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 2)
	})

	t.Run("stopped camera needs no drain", func(t *testing.T) {
		test.That(t, f.cam.SetRunning(ctx, false), test.ShouldBeNil)
		f.clock.naps = nil
		test.That(t, f.cam.SetNumFrameBuffers(ctx, 6), test.ShouldBeNil)
		test.That(t, f.clock.naps, test.ShouldBeEmpty)
	})
}

func TestFrameRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetFrameRate(ctx, 30), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeTrue)
	test.That(t, f.sim.Setup().PacketSize, test.ShouldEqual, 2952)

	rate, err := f.cam.FrameRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rate, test.ShouldAlmostEqual, 1/(125e-6*267))

	f.sim.ResetCalls()
	test.That(t, f.cam.SetFrameRate(ctx, rate), test.ShouldBeNil)
	test.That(t, f.cam.SetFrameRate(ctx, 30), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeFalse)

	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	direct, err := f.cam.FrameRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, direct, test.ShouldAlmostEqual, rate)

	test.That(t, f.cam.SetFrameRate(ctx, 0), test.ShouldNotBeNil)

	t.Run("zero packets per frame", func(t *testing.T) {
		f.driver.PacketsPerFrameFunc = func(context.Context, dcam.Mode) (int, error) {
			return 0, nil
		}
		defer func() { f.driver.PacketsPerFrameFunc = nil }()
		_, err := f.cam.FrameRate(ctx)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestGeometry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetFrameSize(ctx, 645, 481), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeTrue)
	width, height, err := f.cam.FrameSize(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldEqual, 640)
	test.That(t, height, test.ShouldEqual, 480)

	f.sim.ResetCalls()
	test.That(t, f.cam.SetFrameOffset(ctx, 101, 51), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeFalse)
	left, top, err := f.cam.FrameOffset(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left, test.ShouldEqual, 100)
	test.That(t, top, test.ShouldEqual, 50)

	t.Run("offset keeps the frame on the sensor", func(t *testing.T) {
		test.That(t, f.cam.SetFrameOffset(ctx, 1000, 1000), test.ShouldBeNil)
		left, top, err := f.cam.FrameOffset(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, left, test.ShouldEqual, 384)
		test.That(t, top, test.ShouldEqual, 288)
		test.That(t, f.cam.SetFrameOffset(ctx, 100, 50), test.ShouldBeNil)
	})

	t.Run("size fits right of and below the offset", func(t *testing.T) {
		test.That(t, f.cam.SetFrameSize(ctx, 2000, 2000), test.ShouldBeNil)
		width, height, err := f.cam.FrameSize(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, width, test.ShouldEqual, 920)
		test.That(t, height, test.ShouldEqual, 718)
	})

	t.Run("too few pixels", func(t *testing.T) {
		err := f.cam.SetFrameSize(ctx, 8, 8)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "minimum")
		width, _, err := f.cam.FrameSize(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, width, test.ShouldEqual, 920)
	})

	t.Run("direct reads", func(t *testing.T) {
		test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
		defer func() { test.That(t, f.cam.SetShadow(true), test.ShouldBeNil) }()
		left, top, err := f.cam.FrameOffset(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, left, test.ShouldEqual, 100)
		test.That(t, top, test.ShouldEqual, 50)
		width, height, err := f.cam.FrameSize(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, width, test.ShouldEqual, 920)
		test.That(t, height, test.ShouldEqual, 718)
	})
}

func TestPixelCoding(t *testing.T) {
	ctx := context.Background()
	codings := dcam.Bit(0) | dcam.Bit(2) | dcam.Bit(5)
	f := newFixture(t, fixtureOptions{simOpts: []sim.Option{sim.WithColorCodings(codings)}})

	test.That(t, f.cam.SetPixelCoding(ctx, pixel.Mono16), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeTrue)

	f.sim.ResetCalls()
	test.That(t, f.cam.SetPixelCoding(ctx, pixel.YUV422), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeFalse)
	test.That(t, f.sim.Calls(), test.ShouldContain, "SetColorCoding")

	coding, err := f.cam.PixelCoding(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, coding, test.ShouldEqual, pixel.YUV422)

	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	coding, err = f.cam.PixelCoding(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, coding, test.ShouldEqual, pixel.YUV422)

	err = f.cam.SetPixelCoding(ctx, pixel.RGB8)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not supported")
}

func TestShutter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetShutter(ctx, 0.0123), test.ShouldBeNil)
	reg, err := f.sim.Shutter(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg, test.ShouldEqual, uint32(615))
	shutter, err := f.cam.Shutter(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shutter, test.ShouldAlmostEqual, 0.0123)

	test.That(t, f.cam.SetShutter(ctx, 1), test.ShouldBeNil)
	reg, err = f.sim.Shutter(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg, test.ShouldEqual, uint32(4095))
	shutter, err = f.cam.Shutter(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shutter, test.ShouldAlmostEqual, 4095*20e-6)

	test.That(t, f.cam.SetShutter(ctx, 0), test.ShouldBeNil)
	reg, err = f.sim.Shutter(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg, test.ShouldEqual, uint32(1))

	t.Run("direct read", func(t *testing.T) {
		test.That(t, f.sim.SetShutter(ctx, 250), test.ShouldBeNil)
		test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
		defer func() { test.That(t, f.cam.SetShadow(true), test.ShouldBeNil) }()
		shutter, err := f.cam.Shutter(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, shutter, test.ShouldAlmostEqual, 0.005)
	})

	t.Run("hardware failure", func(t *testing.T) {
		f.driver.SetShutterFunc = func(context.Context, uint32) error {
			return errBoom
		}
		defer func() { f.driver.SetShutterFunc = nil }()
		err := f.cam.SetShutter(ctx, 0.02)
		test.That(t, errors.Is(err, ErrHardwareCallFailed), test.ShouldBeTrue)
		test.That(t, errors.Is(err, errBoom), test.ShouldBeTrue)
		shutter, err := f.cam.Shutter(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, shutter, test.ShouldAlmostEqual, 0.005)
	})
}

func TestShutterAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{simOpts: []sim.Option{sim.WithoutFeature(dcam.FeatureShutter)}})

	shutter, err := f.cam.Shutter(ctx)
	test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
	test.That(t, shutter, test.ShouldAlmostEqual, 0.5/(1/(125e-6*192)))

	err = f.cam.SetShutter(ctx, 0.02)
	test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
	shutter, err = f.cam.Shutter(ctx)
	test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
	test.That(t, shutter, test.ShouldEqual, 0.02)
	test.That(t, f.sim.Calls(), test.ShouldNotContain, "SetShutter")

	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	s, err := f.cam.State(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Shutter, test.ShouldEqual, 0.02)
}

func TestWhiteBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetWhiteBalance(ctx, 1.5, 0.5), test.ShouldBeNil)
	blueReg, redReg, err := f.sim.WhiteBalance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blueReg, test.ShouldEqual, uint32(96))
	test.That(t, redReg, test.ShouldEqual, uint32(32))

	test.That(t, f.cam.SetWhiteBalance(ctx, 10, -1), test.ShouldBeNil)
	blue, red, err := f.cam.WhiteBalance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blue, test.ShouldEqual, 255.0/64)
	test.That(t, red, test.ShouldEqual, 0.0)

	test.That(t, f.sim.SetWhiteBalance(ctx, 80, 48), test.ShouldBeNil)
	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	blue, red, err = f.cam.WhiteBalance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blue, test.ShouldEqual, 1.25)
	test.That(t, red, test.ShouldEqual, 0.75)

	t.Run("absent", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{simOpts: []sim.Option{sim.WithoutFeature(dcam.FeatureWhiteBalance)}})
		err := f.cam.SetWhiteBalance(ctx, 2, 3)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		blue, red, err := f.cam.WhiteBalance(ctx)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		test.That(t, blue, test.ShouldEqual, 2.0)
		test.That(t, red, test.ShouldEqual, 3.0)
	})

	t.Run("unbounded range", func(t *testing.T) {
		info := dcam.FeatureInfo{Present: true}
		test.That(t, gainRegister(10, 64, info), test.ShouldEqual, uint32(640))
		test.That(t, gainRegister(-1, 64, info), test.ShouldEqual, uint32(0))
	})
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})

	test.That(t, f.cam.SetExternalTrigger(ctx, true), test.ShouldBeNil)
	test.That(t, f.cam.SetTriggerPolarity(ctx, false), test.ShouldBeNil)
	on, err := f.sim.Trigger(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)
	high, err := f.sim.TriggerPolarity(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	on, err = f.cam.ExternalTrigger(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)
	high, err = f.cam.TriggerPolarity(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	t.Run("no polarity control", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{simOpts: []sim.Option{sim.WithoutTriggerPolarity()}})
		test.That(t, f.cam.SetExternalTrigger(ctx, true), test.ShouldBeNil)
		err := f.cam.SetTriggerPolarity(ctx, false)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		high, err := f.cam.TriggerPolarity(ctx)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		test.That(t, high, test.ShouldBeFalse)
	})

	t.Run("no trigger", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{simOpts: []sim.Option{sim.WithoutFeature(dcam.FeatureTrigger)}})
		err := f.cam.SetExternalTrigger(ctx, true)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		on, err := f.cam.ExternalTrigger(ctx)
		test.That(t, errors.Is(err, ErrFeatureAbsent), test.ShouldBeTrue)
		test.That(t, on, test.ShouldBeTrue)
		test.That(t, f.sim.Calls(), test.ShouldNotContain, "SetTrigger")
	})
}

func TestFormat0(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{
		conf:    format0Config(),
		simOpts: []sim.Option{sim.Format0Only(dcam.Bit(2) | dcam.Bit(3) | dcam.Bit(4))},
	})

	rate, err := f.cam.FrameRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rate, test.ShouldEqual, 30.0)
	width, height, err := f.cam.FrameSize(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldEqual, 640)
	test.That(t, height, test.ShouldEqual, 480)
	coding, err := f.cam.PixelCoding(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, coding, test.ShouldEqual, pixel.Mono8)

	test.That(t, f.cam.SetFrameRate(ctx, 20), test.ShouldBeNil)
	test.That(t, f.reconnected(), test.ShouldBeFalse)
	rate, err = f.cam.FrameRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rate, test.ShouldEqual, 15.0)

	test.That(t, f.cam.SetShadow(false), test.ShouldBeNil)
	rate, err = f.cam.FrameRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rate, test.ShouldEqual, 15.0)
	test.That(t, f.cam.SetShadow(true), test.ShouldBeNil)

	err = f.cam.SetFrameOffset(ctx, 8, 8)
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)
	err = f.cam.SetFrameSize(ctx, 320, 240)
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)
	err = f.cam.SetPixelCoding(ctx, pixel.Mono16)
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)

	t.Run("timestamp uses the fixed packet count", func(t *testing.T) {
		test.That(t, f.cam.SetRunning(ctx, true), test.ShouldBeNil)
		_, _, err := f.cam.NextFrame(ctx)
		test.That(t, err, test.ShouldBeNil)
		ts, err := f.cam.Timestamp(ctx)
		test.That(t, err, test.ShouldBeNil)
		// 10ms exposure and 480 packets of 125us.
		test.That(t, f.clock.Now().Sub(ts).Seconds(), test.ShouldAlmostEqual, 0.07, 1e-6)
		test.That(t, f.cam.ReleaseFrame(ctx), test.ShouldBeNil)
	})
}

func TestReconnectDebugContext(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	logger.SetLevel(logging.INFO)
	f := newFixture(t, fixtureOptions{logger: logger})

	test.That(t, f.cam.SetNumFrameBuffers(context.Background(), 4), test.ShouldBeNil)
	test.That(t, observed.FilterMessage("reconnecting camera").Len(), test.ShouldEqual, 0)

	ctx := logging.EnableDebugMode(context.Background(), "")
	test.That(t, f.cam.SetNumFrameBuffers(ctx, 6), test.ShouldBeNil)
	entries := observed.FilterMessage("reconnecting camera").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["buffers"], test.ShouldEqual, int64(6))
}
