package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/state"
)

func TestStateWatcher(t *testing.T) {
	t.Setenv(config.EnvConfDir, "")
	logger, logs := logging.NewObservedTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := openSimSession(ctx, logger, simOptions{configDir: t.TempDir(), migration: &bytes.Buffer{}})
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, sess.Close(context.Background()), test.ShouldBeNil)
	}()

	dir := t.TempDir()
	path := filepath.Join(dir, "camera.state")
	w, err := newStateWatcher(path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	applied := make(chan state.CameraState, 100)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, sess.cam, func(s state.CameraState) {
			applied <- s
		})
	}()

	waitApplied := func(t *testing.T, check func(state.CameraState) bool) state.CameraState {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case s := <-applied:
				if check(s) {
					return s
				}
			case <-timeout:
				t.Fatal("timed out waiting for the state file to be applied")
			}
		}
	}

	current, err := sess.cam.State(ctx)
	test.That(t, err, test.ShouldBeNil)

	t.Run("write applies the file", func(t *testing.T) {
		next := current
		next.NumFrameBuffers = 4
		next.Width, next.Height = 640, 480
		test.That(t, writeStateFile(path, next), test.ShouldBeNil)

		s := waitApplied(t, func(s state.CameraState) bool { return s.NumFrameBuffers == 4 })
		test.That(t, s.Width, test.ShouldEqual, 640)
		test.That(t, s.Height, test.ShouldEqual, 480)
		test.That(t, sess.sim.Setup().NumBuffers, test.ShouldEqual, 4)
		current = s
	})

	t.Run("unreadable file is skipped", func(t *testing.T) {
		test.That(t, os.WriteFile(path, []byte(state.FileHeader+":\n  num_frame_buffers: 2\n"), 0o600), test.ShouldBeNil)
		deadline := time.Now().Add(5 * time.Second)
		for logs.FilterMessage("skipping unreadable state file").Len() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for the unreadable file to be skipped")
			}
			time.Sleep(10 * time.Millisecond)
		}

		next := current
		next.Width = 320
		test.That(t, writeStateFile(path, next), test.ShouldBeNil)
		s := waitApplied(t, func(s state.CameraState) bool { return s.Width == 320 })
		test.That(t, s.NumFrameBuffers, test.ShouldEqual, 4)
	})

	t.Run("files next to it are ignored", func(t *testing.T) {
		other := filepath.Join(dir, "other.state")
		next := current
		next.NumFrameBuffers = 8
		test.That(t, writeStateFile(other, next), test.ShouldBeNil)

		select {
		case s := <-applied:
			test.That(t, s.NumFrameBuffers, test.ShouldNotEqual, 8)
		case <-time.After(200 * time.Millisecond):
		}
	})

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("applied camera state").Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
}
