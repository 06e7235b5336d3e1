// Package state holds the shadow copy of a camera's mutable parameters.
//
// The shadow is always written after a confirmed hardware change. Whether it is also the
// source for reads is decided by the authority flag and, per field, by PolicyFor.
package state

import (
	"github.com/google/go-cmp/cmp"

	"go.viam.com/iidc/pixel"
)

// CameraState is the device-independent set of camera parameters.
type CameraState struct {
	NumFrameBuffers int          `json:"num_frame_buffers" mapstructure:"num_frame_buffers"`
	BlueGain        float64      `json:"blue_gain" mapstructure:"blue_gain"`
	RedGain         float64      `json:"red_gain" mapstructure:"red_gain"`
	Left            int          `json:"left" mapstructure:"left"`
	Top             int          `json:"top" mapstructure:"top"`
	Width           int          `json:"width" mapstructure:"width"`
	Height          int          `json:"height" mapstructure:"height"`
	Coding          pixel.Coding `json:"coding" mapstructure:"coding"`
	// FrameRate is in frames per second.
	FrameRate float64 `json:"frame_rate" mapstructure:"frame_rate"`
	// Shutter is the exposure time in seconds.
	Shutter         float64 `json:"shutter" mapstructure:"shutter"`
	ExternalTrigger bool    `json:"external_trigger" mapstructure:"external_trigger"`
	// TriggerPolarity is true for active high (rising edge).
	TriggerPolarity bool `json:"trigger_polarity" mapstructure:"trigger_polarity"`
	SingleShot      bool `json:"single_shot" mapstructure:"single_shot"`
	Running         bool `json:"running" mapstructure:"running"`
	// Shadow selects the shadow as the authority for reads.
	Shadow bool `json:"shadow" mapstructure:"shadow"`
}

// Diff returns a human readable description of how b differs from a, or "" if equal.
func Diff(a, b CameraState) string {
	return cmp.Diff(a, b)
}

// Store is one camera's shadow state plus engine bookkeeping. It is not safe for
// concurrent use: a camera has a single owner.
type Store struct {
	state       CameraState
	connected   bool
	frameNumber int64
}

// NewStore returns a store holding initial.
func NewStore(initial CameraState) *Store {
	return &Store{state: initial}
}

// State returns a copy of the shadow.
func (s *Store) State() CameraState {
	return s.state
}

// Replace overwrites the whole shadow.
func (s *Store) Replace(next CameraState) {
	s.state = next
}

// Update applies fn to the shadow. fn should only be called once the change it records has
// been confirmed by the hardware.
func (s *Store) Update(fn func(*CameraState)) {
	fn(&s.state)
}

// Shadow reports whether the shadow is the authority for reads.
func (s *Store) Shadow() bool {
	return s.state.Shadow
}

// SetShadow selects the read authority.
func (s *Store) SetShadow(shadow bool) {
	s.state.Shadow = shadow
}

// Connected reports whether the transport is connected.
func (s *Store) Connected() bool {
	return s.connected
}

// SetConnected records the transport connection state.
func (s *Store) SetConnected(connected bool) {
	s.connected = connected
}

// FrameNumber returns the serial number of the last acquired frame, 0 before the first.
func (s *Store) FrameNumber() int64 {
	return s.frameNumber
}

// AdvanceFrames adds n to the frame serial number. Negative n is ignored so the number
// never decreases.
func (s *Store) AdvanceFrames(n int) int64 {
	if n > 0 {
		s.frameNumber += int64(n)
	}
	return s.frameNumber
}
