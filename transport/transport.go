// Package transport defines the frame transport a camera engine drives: DMA capture setup
// and teardown, and acquiring, releasing and flushing received frames.
package transport

import (
	"context"
	"time"

	"go.viam.com/iidc/dcam"
)

// Setup is everything needed to start isochronous capture.
type Setup struct {
	Format dcam.Format
	Mode   dcam.Mode
	Speed  dcam.Speed
	// FrameRate is only used in Format 0.
	FrameRate dcam.FrameRate
	// PacketSize in bytes is only used in Format 7.
	PacketSize int

	Left, Top     int
	Width, Height int

	NumBuffers int
	DropFrames bool
	// Device is the DMA device path, empty for the platform default.
	Device string
}

// Frame is a received frame still owned by the transport until released.
type Frame struct {
	Data []byte
	// Lag is the number of complete frames received after this one and not yet acquired.
	Lag int
	// Filled is when the transport finished receiving the frame.
	Filled time.Time
}

// Client is a frame transport for one camera. Only one frame can be held at a time: it
// must be released before the next is acquired.
type Client interface {
	Connect(ctx context.Context, setup Setup) error
	Disconnect(ctx context.Context) error
	// Acquire returns the next frame. If wait is false and no frame is ready it returns a
	// nil frame and no error.
	Acquire(ctx context.Context, wait bool) (*Frame, error)
	Release(ctx context.Context) error
	// Flush acquires and releases up to n ready frames without waiting and returns how
	// many were discarded.
	Flush(ctx context.Context, n int) (int, error)
}
