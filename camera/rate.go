package camera

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/packet"
	"go.viam.com/iidc/state"
)

// FrameRate returns the frame rate in frames per second.
func (c *Camera) FrameRate(ctx context.Context) (float64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, err
	}
	return c.frameRate(ctx, cfg)
}

func (c *Camera) frameRate(ctx context.Context, cfg config.HardwareConfig) (float64, error) {
	if c.fromShadow(state.FieldFrameRate) {
		return c.store.State().FrameRate, nil
	}
	var rate float64
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		index, err := c.driver.FrameRate(ctx)
		if err != nil {
			return 0, hardware(err, "reading frame rate")
		}
		if rate = packet.RateFromIndex(index); rate < 0 {
			return 0, errors.Errorf("camera reports an invalid frame rate index %d", index)
		}
	case dcam.FormatScalableImageSize:
		numPackets, err := c.numPackets(ctx, cfg)
		if err != nil {
			return 0, err
		}
		rate = packet.ToFrameRate(numPackets, cfg.Limits())
	default:
		return 0, unsupportedFormat(cfg.Format)
	}
	c.store.Update(func(s *state.CameraState) {
		s.FrameRate = rate
	})
	return rate, nil
}

// numPackets returns the number of packets per frame the camera is transmitting.
func (c *Camera) numPackets(ctx context.Context, cfg config.HardwareConfig) (int, error) {
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		index, err := c.driver.FrameRate(ctx)
		if err != nil {
			return 0, hardware(err, "reading frame rate")
		}
		rate := packet.RateFromIndex(index)
		if rate < 0 {
			return 0, errors.Errorf("camera reports an invalid frame rate index %d", index)
		}
		return packet.FixedPackets(rate), nil
	case dcam.FormatScalableImageSize:
		n, err := c.driver.PacketsPerFrame(ctx, cfg.Mode)
		if err != nil {
			return 0, hardware(err, "reading packets per frame")
		}
		if n == 0 {
			return 0, errors.New("camera reports zero packets per frame")
		}
		return n, nil
	default:
		return 0, unsupportedFormat(cfg.Format)
	}
}

// SetFrameRate requests a frame rate. In Format 0 the nearest fixed rate is written to
// the camera. In Format 7 the rate is quantized by the packet count and packet size, and
// the camera is reconnected only if the packet size changes. Read the rate back to learn
// what was achieved.
func (c *Camera) SetFrameRate(ctx context.Context, rate float64) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	return c.setFrameRate(ctx, cfg, rate)
}

func (c *Camera) setFrameRate(ctx context.Context, cfg config.HardwareConfig, rate float64) error {
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		index := packet.IndexFromRate(rate)
		if err := c.driver.SetFrameRate(ctx, index); err != nil {
			return hardware(err, "setting frame rate")
		}
		c.store.Update(func(s *state.CameraState) {
			s.FrameRate = packet.RateFromIndex(index)
		})
		return nil

	case dcam.FormatScalableImageSize:
		if rate <= 0 {
			return errors.Errorf("frame rate must be positive, got %g", rate)
		}
		settings, err := c.currentSettings(ctx)
		if err != nil {
			return err
		}
		quantum, err := c.packetQuantum(ctx, cfg)
		if err != nil {
			return err
		}
		next := settings
		next.FrameRate = rate
		if packetSize(settings, cfg, quantum) == packetSize(next, cfg, quantum) {
			return nil
		}
		return c.reconnect(ctx, cfg, next)

	default:
		return unsupportedFormat(cfg.Format)
	}
}
