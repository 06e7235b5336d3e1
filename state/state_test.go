package state

import (
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/iidc/pixel"
)

func sampleState() CameraState {
	return CameraState{
		NumFrameBuffers: 10,
		BlueGain:        1.25,
		RedGain:         0.75,
		Left:            8,
		Top:             4,
		Width:           640,
		Height:          480,
		Coding:          pixel.Mono8,
		FrameRate:       29.962546816479403,
		Shutter:         0.0123,
		ExternalTrigger: true,
		TriggerPolarity: true,
		SingleShot:      false,
		Running:         true,
		Shadow:          true,
	}
}

func TestStore(t *testing.T) {
	store := NewStore(sampleState())
	test.That(t, store.Shadow(), test.ShouldBeTrue)
	test.That(t, store.Connected(), test.ShouldBeFalse)

	store.SetShadow(false)
	test.That(t, store.State().Shadow, test.ShouldBeFalse)

	store.Update(func(s *CameraState) {
		s.Shutter = 0.5
	})
	test.That(t, store.State().Shutter, test.ShouldEqual, 0.5)

	snapshot := store.State()
	snapshot.Width = 1
	test.That(t, store.State().Width, test.ShouldEqual, 640)

	t.Run("frame numbers never decrease", func(t *testing.T) {
		test.That(t, store.FrameNumber(), test.ShouldEqual, int64(0))
		test.That(t, store.AdvanceFrames(1), test.ShouldEqual, int64(1))
		test.That(t, store.AdvanceFrames(3), test.ShouldEqual, int64(4))
		test.That(t, store.AdvanceFrames(-2), test.ShouldEqual, int64(4))
	})
}

func TestReadPolicy(t *testing.T) {
	test.That(t, PolicyFor(FieldRunning), test.ShouldEqual, PeekOneShot)
	test.That(t, PolicyFor(FieldSingleShot), test.ShouldEqual, PeekOneShot)
	test.That(t, PolicyFor(FieldNumFrameBuffers), test.ShouldEqual, ShadowOnly)
	test.That(t, PolicyFor(FieldShutter), test.ShouldEqual, ShadowWhenAuthoritative)

	test.That(t, FromShadow(FieldShutter, true), test.ShouldBeTrue)
	test.That(t, FromShadow(FieldShutter, false), test.ShouldBeFalse)
	test.That(t, FromShadow(FieldNumFrameBuffers, false), test.ShouldBeTrue)
	test.That(t, FromShadow(FieldRunning, true), test.ShouldBeFalse)

	for f := FieldNumFrameBuffers; f <= FieldShadow; f++ {
		back, ok := FieldForKey(f.Key())
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, back, test.ShouldEqual, f)
	}
}

func TestFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, Write(&buf, sampleState()), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldStartWith, "Camera settings:\n  num_frame_buffers: 10\n")
	test.That(t, buf.String(), test.ShouldContainSubstring, "  coding:            mono8\n")

	read, err := Read(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Diff(sampleState(), read), test.ShouldEqual, "")
}

func TestReadFailures(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, Write(&buf, sampleState()), test.ShouldBeNil)
	full := buf.String()

	t.Run("short read", func(t *testing.T) {
		lines := strings.Split(strings.TrimSuffix(full, "\n"), "\n")
		short := strings.Join(lines[:len(lines)-1], "\n")
		read, err := Read(strings.NewReader(short))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, read, test.ShouldResemble, CameraState{})
	})

	t.Run("bad coding", func(t *testing.T) {
		bad := strings.Replace(full, "mono8", "bayer", 1)
		_, err := Read(strings.NewReader(bad))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("numeric coding", func(t *testing.T) {
		numeric := strings.Replace(full, "mono8", "5", 1)
		read, err := Read(strings.NewReader(numeric))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Coding, test.ShouldEqual, pixel.RGB8)
	})
}

func TestApply(t *testing.T) {
	s := sampleState()
	test.That(t, Apply(&s, "shutter", "0.02"), test.ShouldBeNil)
	test.That(t, s.Shutter, test.ShouldEqual, 0.02)
	test.That(t, Apply(&s, "coding", "yuv422"), test.ShouldBeNil)
	test.That(t, s.Coding, test.ShouldEqual, pixel.YUV422)
	test.That(t, Apply(&s, "running", "0"), test.ShouldBeNil)
	test.That(t, s.Running, test.ShouldBeFalse)

	before := s
	test.That(t, Apply(&s, "width", "wide"), test.ShouldNotBeNil)
	test.That(t, Apply(&s, "zoom", "2"), test.ShouldNotBeNil)
	test.That(t, s, test.ShouldResemble, before)
}
