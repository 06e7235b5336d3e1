package sim

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/pixel"
)

var errNotPresent = errors.New("feature not present")

// Reset implements dcam.Driver.
func (c *Camera) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Reset"); err != nil {
		return err
	}
	c.resetRegisters()
	return nil
}

// Identity implements dcam.Driver.
func (c *Camera) Identity(ctx context.Context) (dcam.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Identity"); err != nil {
		return dcam.Identity{}, err
	}
	return c.identity, nil
}

// SupportedFormats implements dcam.Driver.
func (c *Camera) SupportedFormats(ctx context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SupportedFormats"); err != nil {
		return 0, err
	}
	return c.formats, nil
}

// SupportedModes implements dcam.Driver.
func (c *Camera) SupportedModes(ctx context.Context, format dcam.Format) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SupportedModes"); err != nil {
		return 0, err
	}
	return c.modes[format], nil
}

// SupportedFrameRates implements dcam.Driver.
func (c *Camera) SupportedFrameRates(ctx context.Context, format dcam.Format, mode dcam.Mode) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SupportedFrameRates"); err != nil {
		return 0, err
	}
	if format != dcam.FormatVGANonCompressed {
		return 0, errors.Errorf("%v has no frame rate inquiry", format)
	}
	return c.rates, nil
}

// FrameRate implements dcam.Driver.
func (c *Camera) FrameRate(ctx context.Context) (dcam.FrameRate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("FrameRate"); err != nil {
		return 0, err
	}
	return c.frameRate, nil
}

// SetFrameRate implements dcam.Driver.
func (c *Camera) SetFrameRate(ctx context.Context, rate dcam.FrameRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetFrameRate"); err != nil {
		return err
	}
	if rate < dcam.FrameRate1_875 || rate > dcam.FrameRate240 || c.rates&dcam.Bit(int(rate-dcam.FrameRate1_875)) == 0 {
		return errors.Errorf("frame rate index %d not supported", rate)
	}
	c.frameRate = rate
	return nil
}

func (c *Camera) checkMode(mode dcam.Mode) error {
	if !mode.IsFormat7() || c.modes[dcam.FormatScalableImageSize]&dcam.Bit(mode.Number()) == 0 {
		return errors.Errorf("%v is not a supported Format 7 mode", mode)
	}
	return nil
}

func (c *Camera) checkGeometry(left, top, width, height int) error {
	switch {
	case width <= 0 || height <= 0:
		return errors.Errorf("illegal frame size %dx%d", width, height)
	case width%c.unitWidth != 0 || height%c.unitHeight != 0:
		return errors.Errorf("frame size %dx%d is not a multiple of %dx%d", width, height, c.unitWidth, c.unitHeight)
	case left%c.unitLeft != 0 || top%c.unitTop != 0:
		return errors.Errorf("frame offset %d,%d is not a multiple of %d,%d", left, top, c.unitLeft, c.unitTop)
	case left < 0 || top < 0 || left+width > c.maxWidth || top+height > c.maxHeight:
		return errors.Errorf("frame %dx%d at %d,%d exceeds %dx%d", width, height, left, top, c.maxWidth, c.maxHeight)
	}
	return nil
}

// MaxImageSize implements dcam.Driver.
func (c *Camera) MaxImageSize(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("MaxImageSize"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.maxWidth, c.maxHeight, nil
}

// UnitSize implements dcam.Driver.
func (c *Camera) UnitSize(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UnitSize"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.unitWidth, c.unitHeight, nil
}

// UnitPosition implements dcam.Driver.
func (c *Camera) UnitPosition(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UnitPosition"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.unitLeft, c.unitTop, nil
}

// ImageSize implements dcam.Driver.
func (c *Camera) ImageSize(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ImageSize"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.width, c.height, nil
}

// ImagePosition implements dcam.Driver.
func (c *Camera) ImagePosition(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ImagePosition"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.left, c.top, nil
}

// SetImagePosition implements dcam.Driver.
func (c *Camera) SetImagePosition(ctx context.Context, mode dcam.Mode, left, top int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetImagePosition"); err != nil {
		return err
	}
	if err := c.checkMode(mode); err != nil {
		return err
	}
	if err := c.checkGeometry(left, top, c.width, c.height); err != nil {
		return err
	}
	c.left, c.top = left, top
	return nil
}

// ColorCodings implements dcam.Driver.
func (c *Camera) ColorCodings(ctx context.Context, mode dcam.Mode) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ColorCodings"); err != nil {
		return 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, err
	}
	return c.colorBits, nil
}

// ColorCoding implements dcam.Driver.
func (c *Camera) ColorCoding(ctx context.Context, mode dcam.Mode) (dcam.ColorID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ColorCoding"); err != nil {
		return 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, err
	}
	return c.color, nil
}

// SetColorCoding implements dcam.Driver.
func (c *Camera) SetColorCoding(ctx context.Context, mode dcam.Mode, id dcam.ColorID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetColorCoding"); err != nil {
		return err
	}
	if err := c.checkMode(mode); err != nil {
		return err
	}
	if pixel.ColorID(pixel.FromColorID(id), c.colorBits) != id {
		return errors.Errorf("color coding %d not supported", id)
	}
	c.color = id
	return nil
}

// PacketParameters implements dcam.Driver.
func (c *Camera) PacketParameters(ctx context.Context, mode dcam.Mode) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("PacketParameters"); err != nil {
		return 0, 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, 0, err
	}
	return c.packetUnit, c.packetMax, nil
}

// PacketsPerFrame implements dcam.Driver.
func (c *Camera) PacketsPerFrame(ctx context.Context, mode dcam.Mode) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("PacketsPerFrame"); err != nil {
		return 0, err
	}
	if err := c.checkMode(mode); err != nil {
		return 0, err
	}
	size, err := pixel.FrameBytes(c.width, c.height, pixel.FromColorID(c.color))
	if err != nil {
		return 0, err
	}
	return (size + c.packetSize - 1) / c.packetSize, nil
}

// Feature implements dcam.Driver.
func (c *Camera) Feature(ctx context.Context, feature dcam.Feature) (dcam.FeatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Feature"); err != nil {
		return dcam.FeatureInfo{}, err
	}
	return c.features[feature], nil
}

func (c *Camera) present(feature dcam.Feature) error {
	if !c.features[feature].Present {
		return errors.Wrap(errNotPresent, feature.String())
	}
	return nil
}

// Shutter implements dcam.Driver.
func (c *Camera) Shutter(ctx context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Shutter"); err != nil {
		return 0, err
	}
	if err := c.present(dcam.FeatureShutter); err != nil {
		return 0, err
	}
	return c.shutter, nil
}

// SetShutter implements dcam.Driver.
func (c *Camera) SetShutter(ctx context.Context, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetShutter"); err != nil {
		return err
	}
	if err := c.present(dcam.FeatureShutter); err != nil {
		return err
	}
	info := c.features[dcam.FeatureShutter]
	if value < info.Min || value > info.Max {
		return errors.Errorf("shutter %d outside [%d, %d]", value, info.Min, info.Max)
	}
	c.shutter = value
	return nil
}

// WhiteBalance implements dcam.Driver.
func (c *Camera) WhiteBalance(ctx context.Context) (uint32, uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("WhiteBalance"); err != nil {
		return 0, 0, err
	}
	if err := c.present(dcam.FeatureWhiteBalance); err != nil {
		return 0, 0, err
	}
	return c.blue, c.red, nil
}

// SetWhiteBalance implements dcam.Driver.
func (c *Camera) SetWhiteBalance(ctx context.Context, blue, red uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetWhiteBalance"); err != nil {
		return err
	}
	if err := c.present(dcam.FeatureWhiteBalance); err != nil {
		return err
	}
	c.blue, c.red = blue, red
	return nil
}

// Trigger implements dcam.Driver.
func (c *Camera) Trigger(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Trigger"); err != nil {
		return false, err
	}
	if err := c.present(dcam.FeatureTrigger); err != nil {
		return false, err
	}
	return c.trigger, nil
}

// SetTrigger implements dcam.Driver.
func (c *Camera) SetTrigger(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetTrigger"); err != nil {
		return err
	}
	if err := c.present(dcam.FeatureTrigger); err != nil {
		return err
	}
	c.trigger = on
	return nil
}

// TriggerPolarity implements dcam.Driver.
func (c *Camera) TriggerPolarity(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("TriggerPolarity"); err != nil {
		return false, err
	}
	if !c.features[dcam.FeatureTrigger].HasPolarity {
		return false, errors.Wrap(errNotPresent, "trigger polarity")
	}
	return c.polarity, nil
}

// SetTriggerPolarity implements dcam.Driver.
func (c *Camera) SetTriggerPolarity(ctx context.Context, high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetTriggerPolarity"); err != nil {
		return err
	}
	if !c.features[dcam.FeatureTrigger].HasPolarity {
		return errors.Wrap(errNotPresent, "trigger polarity")
	}
	c.polarity = high
	return nil
}

// SetTriggerMode implements dcam.Driver.
func (c *Camera) SetTriggerMode(ctx context.Context, mode uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetTriggerMode"); err != nil {
		return err
	}
	if err := c.present(dcam.FeatureTrigger); err != nil {
		return err
	}
	c.triggerMode = mode
	return nil
}

// Transmitting implements dcam.Driver.
func (c *Camera) Transmitting(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Transmitting"); err != nil {
		return false, err
	}
	return c.transmitting, nil
}

// StartTransmission implements dcam.Driver.
func (c *Camera) StartTransmission(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("StartTransmission"); err != nil {
		return err
	}
	c.transmitting = true
	return nil
}

// StopTransmission implements dcam.Driver.
func (c *Camera) StopTransmission(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("StopTransmission"); err != nil {
		return err
	}
	c.transmitting = false
	return nil
}

// OneShot implements dcam.Driver.
func (c *Camera) OneShot(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("OneShot"); err != nil {
		return false, err
	}
	return c.oneShot, nil
}

// SetOneShot implements dcam.Driver.
func (c *Camera) SetOneShot(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetOneShot"); err != nil {
		return err
	}
	c.oneShot = on
	return nil
}
