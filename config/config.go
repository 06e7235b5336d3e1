// Package config holds the static hardware timing configuration of an IIDC camera: how it
// is encoded on disk, how a best guess is synthesized from capability registers, and the
// per-camera cache that loads it once.
package config

import (
	"github.com/pkg/errors"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/packet"
)

// ErrUnavailable is returned when no configuration could be cached for a camera.
var ErrUnavailable = errors.New("hardware configuration unavailable")

// HardwareConfig is the read-mostly timing and geometry description of one camera.
type HardwareConfig struct {
	Speed      dcam.Speed  `json:"speed" mapstructure:"speed"`
	Format     dcam.Format `json:"format" mapstructure:"format"`
	Mode       dcam.Mode   `json:"mode" mapstructure:"mode"`
	MaxPackets int         `json:"max_packets" mapstructure:"max_packets"`
	MinPixels  int         `json:"min_pixels" mapstructure:"min_pixels"`
	// BusPeriod is the isochronous cycle time in seconds per packet.
	BusPeriod    float64 `json:"bus_period" mapstructure:"bus_period"`
	BlueGainNorm float64 `json:"blue_gain_norm" mapstructure:"blue_gain_norm"`
	RedGainNorm  float64 `json:"red_gain_norm" mapstructure:"red_gain_norm"`
	// TrigSetupTime through TransmitSetupTime are in seconds and feed timestamp estimates.
	TrigSetupTime     float64 `json:"trig_setup_time" mapstructure:"trig_setup_time"`
	ExposureQuantum   float64 `json:"exposure_quantum" mapstructure:"exposure_quantum"`
	ExposureOffset    float64 `json:"exposure_offset" mapstructure:"exposure_offset"`
	LineTransferTime  float64 `json:"line_transfer_time" mapstructure:"line_transfer_time"`
	TransmitSetupTime float64 `json:"transmit_setup_time" mapstructure:"transmit_setup_time"`
	DropFrames        bool    `json:"drop_frames" mapstructure:"drop_frames"`
	// DMADeviceName is empty for the platform default device.
	DMADeviceName string `json:"dma_device_name" mapstructure:"dma_device_name"`
}

// Loaded reports whether the config has been populated. A zero format is never valid.
func (conf *HardwareConfig) Loaded() bool {
	return conf.Format != 0
}

// Limits returns the packet timing limits.
func (conf *HardwareConfig) Limits() packet.Limits {
	return packet.Limits{BusPeriod: conf.BusPeriod, MaxPackets: conf.MaxPackets}
}

// Validate ensures all parts of the config are valid.
func (conf *HardwareConfig) Validate(path string) ([]string, error) {
	switch conf.Format {
	case dcam.FormatVGANonCompressed:
		if !conf.Mode.IsFormat0() {
			return nil, validationError(path, errors.Errorf("%v is not a mode of %v", conf.Mode, conf.Format))
		}
	case dcam.FormatScalableImageSize:
		if !conf.Mode.IsFormat7() {
			return nil, validationError(path, errors.Errorf("%v is not a mode of %v", conf.Mode, conf.Format))
		}
	default:
		return nil, validationError(path, errors.Errorf("unsupported format %v", conf.Format))
	}
	if conf.Speed < dcam.Speed100 || conf.Speed > dcam.Speed400 {
		return nil, validationError(path, errors.Errorf("unknown bus speed %d", conf.Speed))
	}
	if conf.MaxPackets < 1 {
		return nil, validationError(path, errors.Errorf("max_packets must be at least 1, got %d", conf.MaxPackets))
	}
	if conf.BusPeriod <= 0 {
		return nil, validationError(path, errors.Errorf("bus_period must be positive, got %g", conf.BusPeriod))
	}
	if conf.ExposureQuantum <= 0 {
		return nil, validationError(path, errors.Errorf("exposure_quantum must be positive, got %g", conf.ExposureQuantum))
	}
	if conf.BlueGainNorm <= 0 || conf.RedGainNorm <= 0 {
		return nil, validationError(path, errors.New("white balance gain norms must be positive"))
	}
	return nil, nil
}

func validationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// busPeriods is the isochronous packet period of each bus speed.
var busPeriods = map[dcam.Speed]float64{
	dcam.Speed100: 500e-6,
	dcam.Speed200: 250e-6,
	dcam.Speed400: 125e-6,
}

// Defaults returns the timing defaults used before anything is known about a camera.
func Defaults() HardwareConfig {
	return HardwareConfig{
		Speed:           dcam.Speed400,
		MaxPackets:      4095,
		MinPixels:       4096,
		BusPeriod:       busPeriods[dcam.Speed400],
		BlueGainNorm:    64,
		RedGainNorm:     64,
		ExposureQuantum: 20e-6,
	}
}
