package camera

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/pixel"
)

// NextFrame blocks until a frame is available and returns its pixel data along with the
// buffer lag, the number of complete frames still waiting behind it. The data belongs to
// the transport and is valid until ReleaseFrame, which must be called before the next
// acquisition. Under a drop-frames configuration the lag is always 0 and the frame number
// instead skips the frames the transport dropped.
func (c *Camera) NextFrame(ctx context.Context) ([]byte, int, error) {
	if err := c.ready(); err != nil {
		return nil, 0, err
	}
	return c.acquire(ctx, true)
}

// PollFrame is NextFrame without blocking. It returns nil data and a lag of 0 when no
// frame is ready.
func (c *Camera) PollFrame(ctx context.Context) ([]byte, int, error) {
	if err := c.ready(); err != nil {
		return nil, 0, err
	}
	return c.acquire(ctx, false)
}

func (c *Camera) acquire(ctx context.Context, wait bool) ([]byte, int, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return nil, 0, err
	}
	frame, err := c.transport.Acquire(ctx, wait)
	if err != nil {
		return nil, 0, hardware(err, "acquiring frame")
	}
	if frame == nil {
		c.lag = 0
		return nil, 0, nil
	}
	c.frame = frame
	c.filled = frame.Filled
	c.advance(cfg, frame.Lag)
	return frame.Data, c.lag, nil
}

// advance counts one acquired frame that had lag frames waiting behind it.
func (c *Camera) advance(cfg config.HardwareConfig, lag int) {
	if cfg.DropFrames {
		c.store.AdvanceFrames(1 + lag)
		c.lag = 0
		return
	}
	c.store.AdvanceFrames(1)
	c.lag = lag
}

// ReleaseFrame returns the frame from NextFrame or PollFrame to the transport.
func (c *Camera) ReleaseFrame(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.frame == nil {
		return errors.New("no frame to release")
	}
	c.frame = nil
	return hardware(c.transport.Release(ctx), "releasing frame")
}

// CopyNextFrame blocks for the next frame, copies it into dst and releases it. dst must
// hold the whole frame.
func (c *Camera) CopyNextFrame(ctx context.Context, dst []byte) (int, error) {
	data, lag, err := c.NextFrame(ctx)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(data) {
		return 0, multierr.Combine(
			errors.Errorf("buffer of %d bytes is too small for a %d byte frame", len(dst), len(data)),
			c.ReleaseFrame(ctx),
		)
	}
	copy(dst, data)
	if err := c.ReleaseFrame(ctx); err != nil {
		return 0, err
	}
	return lag, nil
}

// CopyNextFrameStride is CopyNextFrame into an image whose rows start stride bytes apart.
// Only the pixel bytes of each row are written, so padding between rows is left as is.
func (c *Camera) CopyNextFrameStride(ctx context.Context, dst []byte, stride int) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, err
	}
	width, height, err := c.frameSize(ctx, cfg)
	if err != nil {
		return 0, err
	}
	coding, err := c.pixelCoding(ctx, cfg)
	if err != nil {
		return 0, err
	}
	depth, err := pixel.Depth(coding)
	if err != nil {
		return 0, err
	}
	rowBytes := width * depth / 8
	if stride < rowBytes {
		return 0, errors.Errorf("stride of %d bytes is shorter than a %d byte row", stride, rowBytes)
	}
	if height > 0 && len(dst) < (height-1)*stride+rowBytes {
		return 0, errors.Errorf("buffer of %d bytes is too small for %d rows %d bytes apart", len(dst), height, stride)
	}

	data, lag, err := c.NextFrame(ctx)
	if err != nil {
		return 0, err
	}
	if len(data) < height*rowBytes {
		return 0, multierr.Combine(
			errors.Errorf("frame of %d bytes is short of %d rows of %d bytes", len(data), height, rowBytes),
			c.ReleaseFrame(ctx),
		)
	}
	for row := range height {
		copy(dst[row*stride:row*stride+rowBytes], data[row*rowBytes:(row+1)*rowBytes])
	}
	if err := c.ReleaseFrame(ctx); err != nil {
		return 0, err
	}
	return lag, nil
}

// FrameNumber returns the serial number of the last acquired frame, 0 before the first.
// It counts frames the transport dropped, so gaps reveal missed frames.
func (c *Camera) FrameNumber() (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.store.FrameNumber(), nil
}

// FrameBufferLag returns the buffer lag reported by the last acquisition or flush.
func (c *Camera) FrameBufferLag() (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.lag, nil
}

// FlushFrameBuffers discards up to n waiting frames and returns how many were discarded.
// Discarded frames are counted in the frame number.
func (c *Camera) FlushFrameBuffers(ctx context.Context, n int) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, nil
	}
	flushed, err := c.transport.Flush(ctx, n)
	if err != nil {
		return 0, hardware(err, "flushing frame buffers")
	}
	c.store.AdvanceFrames(flushed)
	c.lag = max(c.lag-flushed, 0)
	return flushed, nil
}

// Timestamp estimates when the exposure of the last acquired frame started, by
// subtracting from the time the frame was filled the trigger setup, the exposure, the
// sensor readout, the transmit setup and the bus transfer of its packets.
func (c *Camera) Timestamp(ctx context.Context) (time.Time, error) {
	if err := c.ready(); err != nil {
		return time.Time{}, err
	}
	if c.filled.IsZero() {
		return time.Time{}, errors.New("no frame has been acquired")
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return time.Time{}, err
	}
	numPackets, err := c.numPackets(ctx, cfg)
	if err != nil {
		return time.Time{}, err
	}
	shutter, err := c.shutter(ctx, cfg)
	if err != nil && !errors.Is(err, ErrFeatureAbsent) {
		return time.Time{}, err
	}
	_, height, err := c.frameSize(ctx, cfg)
	if err != nil {
		return time.Time{}, err
	}
	return c.filled.Add(-exposureLag(cfg, shutter, height, numPackets)), nil
}

// exposureLag is the time from the start of exposure to the frame being filled.
func exposureLag(cfg config.HardwareConfig, shutter float64, height, numPackets int) time.Duration {
	seconds := cfg.TrigSetupTime +
		shutter +
		cfg.LineTransferTime*float64(height) +
		cfg.TransmitSetupTime +
		float64(numPackets)*cfg.BusPeriod
	return time.Duration(seconds * float64(time.Second))
}

// BufferFlushCount decides how many frames to flush from a ring of total buffers when lag
// frames are waiting behind the current one. When the ring is within a frame of overflowing
// every buffer is flushed and overflow is reported, because the transport does not always
// fill the last buffer. Above 90% full it is flushed down to 10%. Rings of fewer than three
// buffers are left alone.
func BufferFlushCount(total, lag int) (n int, overflow bool) {
	if total < 3 {
		return 0, false
	}
	level := lag + 1
	if level >= total-1 {
		return total, true
	}
	if float64(level) >= 0.9*float64(total) {
		return int(float64(level) - 0.1*float64(total)), false
	}
	return 0, false
}

// ManageBufferLevel flushes frames according to BufferFlushCount and the current buffer
// lag, and reports whether the ring was about to overflow.
func (c *Camera) ManageBufferLevel(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	total := c.store.State().NumFrameBuffers
	n, overflow := BufferFlushCount(total, c.lag)
	if overflow {
		c.logger.Warnw("frame buffers about to overflow, flushing all", "buffers", total, "lag", c.lag)
	}
	if n > 0 {
		if _, err := c.FlushFrameBuffers(ctx, n); err != nil {
			return overflow, err
		}
	}
	return overflow, nil
}
