package camera

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
)

// minFrameBuffers is the fewest buffers the transport accepts.
const minFrameBuffers = 2

// NumFrameBuffers returns the number of frame buffers in the transport ring.
func (c *Camera) NumFrameBuffers() (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.store.State().NumFrameBuffers, nil
}

// SetNumFrameBuffers resizes the transport ring, reconnecting if the count changes. Fewer
// than two buffers are raised to two.
func (c *Camera) SetNumFrameBuffers(ctx context.Context, n int) error {
	if err := c.ready(); err != nil {
		return err
	}
	n = max(n, minFrameBuffers)
	settings, err := c.currentSettings(ctx)
	if err != nil {
		return err
	}
	if settings.NumFrameBuffers == n {
		return nil
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	settings.NumFrameBuffers = n
	return c.reconnect(ctx, cfg, settings)
}

// FrameOffset returns the position of the region of interest.
func (c *Camera) FrameOffset(ctx context.Context) (left, top int, err error) {
	if err := c.ready(); err != nil {
		return 0, 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c.frameOffset(ctx, cfg)
}

func (c *Camera) frameOffset(ctx context.Context, cfg config.HardwareConfig) (int, int, error) {
	if c.fromShadow(state.FieldLeft) {
		s := c.store.State()
		return s.Left, s.Top, nil
	}
	var left, top int
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
	case dcam.FormatScalableImageSize:
		var err error
		if left, top, err = c.driver.ImagePosition(ctx, cfg.Mode); err != nil {
			return 0, 0, hardware(err, "reading image position")
		}
	default:
		return 0, 0, unsupportedFormat(cfg.Format)
	}
	c.store.Update(func(s *state.CameraState) {
		s.Left, s.Top = left, top
	})
	return left, top, nil
}

// SetFrameOffset moves the region of interest without reconnecting. The offset is rounded
// down to the camera's position unit and limited so the frame stays on the sensor. Only
// Format 7 has an offset.
func (c *Camera) SetFrameOffset(ctx context.Context, left, top int) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	return c.setFrameOffset(ctx, cfg, left, top)
}

func (c *Camera) setFrameOffset(ctx context.Context, cfg config.HardwareConfig, left, top int) error {
	if cfg.Format != dcam.FormatScalableImageSize {
		return errors.Wrap(unsupportedFormat(cfg.Format), "frame offset is fixed")
	}
	maxWidth, maxHeight, err := c.driver.MaxImageSize(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "reading maximum image size")
	}
	if maxWidth == 0 || maxHeight == 0 {
		return errors.New("camera reports a zero maximum image size")
	}
	width, height, err := c.driver.ImageSize(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "reading image size")
	}
	if width > maxWidth || height > maxHeight {
		return errors.Errorf("image size %dx%d exceeds the maximum %dx%d", width, height, maxWidth, maxHeight)
	}
	unitLeft, unitTop, err := c.driver.UnitPosition(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "reading position unit")
	}
	if unitLeft == 0 || unitTop == 0 {
		return errors.New("camera reports a zero position unit")
	}

	newLeft := min(left/unitLeft, (maxWidth-width)/unitLeft) * unitLeft
	newTop := min(top/unitTop, (maxHeight-height)/unitTop) * unitTop
	if err := c.driver.SetImagePosition(ctx, cfg.Mode, newLeft, newTop); err != nil {
		return hardware(err, "setting image position")
	}
	c.store.Update(func(s *state.CameraState) {
		s.Left, s.Top = newLeft, newTop
	})
	return nil
}

// FrameSize returns the size of the region of interest.
func (c *Camera) FrameSize(ctx context.Context) (width, height int, err error) {
	if err := c.ready(); err != nil {
		return 0, 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c.frameSize(ctx, cfg)
}

func (c *Camera) frameSize(ctx context.Context, cfg config.HardwareConfig) (int, int, error) {
	if c.fromShadow(state.FieldWidth) {
		s := c.store.State()
		return s.Width, s.Height, nil
	}
	var width, height int
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		width, height = pixel.ModeSize(cfg.Mode)
	case dcam.FormatScalableImageSize:
		var err error
		if width, height, err = c.driver.ImageSize(ctx, cfg.Mode); err != nil {
			return 0, 0, hardware(err, "reading image size")
		}
	default:
		return 0, 0, unsupportedFormat(cfg.Format)
	}
	c.store.Update(func(s *state.CameraState) {
		s.Width, s.Height = width, height
	})
	return width, height, nil
}

// SetFrameSize resizes the region of interest, which reconnects the camera. The size is
// rounded down to the camera's size unit, at least one unit, and limited to what fits right
// of and below the current offset. A size with fewer than the configured minimum number of
// pixels is refused. Only Format 7 frames can be resized.
func (c *Camera) SetFrameSize(ctx context.Context, width, height int) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	if cfg.Format != dcam.FormatScalableImageSize {
		return errors.Wrap(unsupportedFormat(cfg.Format), "frame size is fixed")
	}
	settings, err := c.currentSettings(ctx)
	if err != nil {
		return err
	}
	if width == settings.Width && height == settings.Height {
		return nil
	}

	maxWidth, maxHeight, err := c.driver.MaxImageSize(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "reading maximum image size")
	}
	if maxWidth == 0 || maxHeight == 0 || settings.Left >= maxWidth || settings.Top >= maxHeight {
		return errors.Errorf("frame offset %d,%d is outside the maximum image size %dx%d",
			settings.Left, settings.Top, maxWidth, maxHeight)
	}
	unitWidth, unitHeight, err := c.driver.UnitSize(ctx, cfg.Mode)
	if err != nil {
		return hardware(err, "reading size unit")
	}
	if unitWidth == 0 || unitHeight == 0 {
		return errors.New("camera reports a zero size unit")
	}

	newWidth := lo.Clamp(width/unitWidth, 1, (maxWidth-settings.Left)/unitWidth) * unitWidth
	newHeight := lo.Clamp(height/unitHeight, 1, (maxHeight-settings.Top)/unitHeight) * unitHeight
	if newWidth*newHeight < cfg.MinPixels {
		return errors.Errorf("frame size %dx%d is below the minimum of %d pixels", newWidth, newHeight, cfg.MinPixels)
	}
	if newWidth == settings.Width && newHeight == settings.Height {
		return nil
	}
	settings.Width, settings.Height = newWidth, newHeight
	return c.reconnect(ctx, cfg, settings)
}
