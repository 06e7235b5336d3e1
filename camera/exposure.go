package camera

import (
	"context"
	"math"

	"github.com/samber/lo"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/state"
)

// Shutter returns the exposure time in seconds. If the camera has no shutter the shadow
// value is returned with ErrFeatureAbsent.
func (c *Camera) Shutter(ctx context.Context) (float64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, err
	}
	return c.shutter(ctx, cfg)
}

func (c *Camera) shutter(ctx context.Context, cfg config.HardwareConfig) (float64, error) {
	_, avail, err := c.feature(ctx, dcam.FeatureShutter)
	if err != nil {
		return 0, err
	}
	if avail == Absent {
		return c.store.State().Shutter, featureAbsent("shutter")
	}
	if c.fromShadow(state.FieldShutter) {
		return c.store.State().Shutter, nil
	}
	reg, err := c.driver.Shutter(ctx)
	if err != nil {
		return 0, hardware(err, "reading shutter")
	}
	shutter := cfg.ExposureOffset + float64(reg)*cfg.ExposureQuantum
	c.store.Update(func(s *state.CameraState) {
		s.Shutter = shutter
	})
	return shutter, nil
}

// SetShutter sets the exposure time in seconds. It is rounded to the nearest exposure
// quantum within the shutter register's range; the shadow holds the rounded value. If the
// camera has no shutter the requested value is kept in the shadow and ErrFeatureAbsent
// is returned.
func (c *Camera) SetShutter(ctx context.Context, shutter float64) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	return c.setShutter(ctx, cfg, shutter)
}

func (c *Camera) setShutter(ctx context.Context, cfg config.HardwareConfig, shutter float64) error {
	info, avail, err := c.feature(ctx, dcam.FeatureShutter)
	if err != nil {
		return err
	}
	if avail == Absent {
		c.store.Update(func(s *state.CameraState) {
			s.Shutter = shutter
		})
		return featureAbsent("shutter")
	}
	reg := math.Floor((shutter-cfg.ExposureOffset)/cfg.ExposureQuantum + 0.5)
	reg = lo.Clamp(reg, float64(info.Min), float64(info.Max))
	if err := c.driver.SetShutter(ctx, uint32(reg)); err != nil {
		return hardware(err, "setting shutter")
	}
	c.store.Update(func(s *state.CameraState) {
		s.Shutter = cfg.ExposureOffset + reg*cfg.ExposureQuantum
	})
	return nil
}

// WhiteBalance returns the blue and red gains, where 1.0 is the camera's factory gain.
// If the camera has no white balance the shadow values are returned with
// ErrFeatureAbsent.
func (c *Camera) WhiteBalance(ctx context.Context) (blue, red float64, err error) {
	if err := c.ready(); err != nil {
		return 0, 0, err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c.whiteBalance(ctx, cfg)
}

func (c *Camera) whiteBalance(ctx context.Context, cfg config.HardwareConfig) (float64, float64, error) {
	_, avail, err := c.feature(ctx, dcam.FeatureWhiteBalance)
	if err != nil {
		return 0, 0, err
	}
	s := c.store.State()
	if avail == Absent {
		return s.BlueGain, s.RedGain, featureAbsent("white balance")
	}
	if c.fromShadow(state.FieldBlueGain) {
		return s.BlueGain, s.RedGain, nil
	}
	blueReg, redReg, err := c.driver.WhiteBalance(ctx)
	if err != nil {
		return 0, 0, hardware(err, "reading white balance")
	}
	blue := float64(blueReg) / cfg.BlueGainNorm
	red := float64(redReg) / cfg.RedGainNorm
	c.store.Update(func(s *state.CameraState) {
		s.BlueGain, s.RedGain = blue, red
	})
	return blue, red, nil
}

// SetWhiteBalance sets the blue and red gains. Each is scaled by its configured norm and
// rounded to a register value within the feature's range. If the camera has no white
// balance the requested gains are kept in the shadow and ErrFeatureAbsent is returned.
func (c *Camera) SetWhiteBalance(ctx context.Context, blue, red float64) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	return c.setWhiteBalance(ctx, cfg, blue, red)
}

func (c *Camera) setWhiteBalance(ctx context.Context, cfg config.HardwareConfig, blue, red float64) error {
	info, avail, err := c.feature(ctx, dcam.FeatureWhiteBalance)
	if err != nil {
		return err
	}
	if avail == Absent {
		c.store.Update(func(s *state.CameraState) {
			s.BlueGain, s.RedGain = blue, red
		})
		return featureAbsent("white balance")
	}
	blueReg := gainRegister(blue, cfg.BlueGainNorm, info)
	redReg := gainRegister(red, cfg.RedGainNorm, info)
	if err := c.driver.SetWhiteBalance(ctx, blueReg, redReg); err != nil {
		return hardware(err, "setting white balance")
	}
	c.store.Update(func(s *state.CameraState) {
		s.BlueGain = float64(blueReg) / cfg.BlueGainNorm
		s.RedGain = float64(redReg) / cfg.RedGainNorm
	})
	return nil
}

// gainRegister rounds gain*norm to a register value. The range is only enforced when the
// camera reports one.
func gainRegister(gain, norm float64, info dcam.FeatureInfo) uint32 {
	reg := math.Max(math.Floor(gain*norm+0.5), 0)
	if info.Min < info.Max {
		reg = lo.Clamp(reg, float64(info.Min), float64(info.Max))
	}
	return uint32(reg)
}
