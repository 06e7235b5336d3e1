package camera

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
)

// PixelCoding returns the pixel coding.
func (c *Camera) PixelCoding(ctx context.Context) (pixel.Coding, error) {
	if err := c.ready(); err != nil {
		return pixel.Invalid, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return pixel.Invalid, err
	}
	return c.pixelCoding(ctx, cfg)
}

func (c *Camera) pixelCoding(ctx context.Context, cfg config.HardwareConfig) (pixel.Coding, error) {
	if c.fromShadow(state.FieldCoding) {
		return c.store.State().Coding, nil
	}
	var coding pixel.Coding
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		coding = pixel.FromMode(cfg.Mode)
	case dcam.FormatScalableImageSize:
		id, err := c.driver.ColorCoding(ctx, cfg.Mode)
		if err != nil {
			return pixel.Invalid, hardware(err, "reading color coding")
		}
		coding = pixel.FromColorID(id)
	default:
		return pixel.Invalid, unsupportedFormat(cfg.Format)
	}
	c.store.Update(func(s *state.CameraState) {
		s.Coding = coding
	})
	return coding, nil
}

// SetPixelCoding changes the pixel coding of a Format 7 camera. A coding of the same bit
// depth is written directly; a different depth reconnects the camera.
func (c *Camera) SetPixelCoding(ctx context.Context, coding pixel.Coding) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	return c.setPixelCoding(ctx, cfg, coding)
}

func (c *Camera) setPixelCoding(ctx context.Context, cfg config.HardwareConfig, coding pixel.Coding) error {
	if cfg.Format != dcam.FormatScalableImageSize {
		return errors.Wrap(unsupportedFormat(cfg.Format), "pixel coding is fixed")
	}
	old, err := c.pixelCoding(ctx, cfg)
	if err != nil {
		return err
	}
	if coding == old {
		return nil
	}

	bits, err := c.driver.ColorCodings(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "querying color codings")
	}
	if bits == 0 {
		return errors.New("camera reports no color codings")
	}
	id := pixel.ColorID(coding, bits)
	if id == 0 {
		return errors.Errorf("pixel coding %v is not supported by the camera", coding)
	}
	oldDepth, err := pixel.Depth(old)
	if err != nil {
		return err
	}
	newDepth, err := pixel.Depth(coding)
	if err != nil {
		return err
	}

	if newDepth == oldDepth {
		if err := c.driver.SetColorCoding(ctx, cfg.Mode, id); err != nil {
			return hardware(err, "setting color coding")
		}
		c.store.Update(func(s *state.CameraState) {
			s.Coding = coding
		})
		return nil
	}
	settings, err := c.currentSettings(ctx)
	if err != nil {
		return err
	}
	settings.Coding = coding
	return c.reconnect(ctx, cfg, settings)
}
