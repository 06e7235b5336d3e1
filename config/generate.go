package config

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/iidc/dcam"
)

// fixedModePreference is the order in which Format 0 modes are preferred, richest first.
var fixedModePreference = []dcam.Mode{
	dcam.Mode640x480Mono16,
	dcam.Mode640x480Mono,
	dcam.Mode640x480RGB,
	dcam.Mode640x480YUV422,
	dcam.Mode640x480YUV411,
	dcam.Mode320x240YUV422,
	dcam.Mode160x120YUV444,
}

// Generate synthesizes a best-guess configuration from the camera's capability registers.
// It resets the camera to factory settings first so that the white balance registers
// hold their default gains. Format 7 is preferred over Format 0, and the highest
// numbered supported mode is chosen.
func Generate(ctx context.Context, driver dcam.Driver) (HardwareConfig, error) {
	if err := driver.Reset(ctx); err != nil {
		return HardwareConfig{}, errors.Wrap(err, "resetting camera")
	}

	formats, err := driver.SupportedFormats(ctx)
	if err != nil {
		return HardwareConfig{}, errors.Wrap(err, "querying supported formats")
	}
	if formats&dcam.InquiryMask == 0 {
		return HardwareConfig{}, errors.New("camera reports no supported formats")
	}

	conf := Defaults()
	switch {
	case formats&dcam.Bit(dcam.FormatScalableImageSize.Number()) != 0:
		conf.Format = dcam.FormatScalableImageSize
	case formats&dcam.Bit(dcam.FormatVGANonCompressed.Number()) != 0:
		conf.Format = dcam.FormatVGANonCompressed
	default:
		return HardwareConfig{}, errors.Errorf("none of the camera's formats (%#08x) is supported", formats)
	}

	modes, err := driver.SupportedModes(ctx, conf.Format)
	if err != nil {
		return HardwareConfig{}, errors.Wrapf(err, "querying supported modes of %v", conf.Format)
	}
	if modes&dcam.InquiryMask == 0 {
		return HardwareConfig{}, errors.Errorf("camera reports no supported modes in %v", conf.Format)
	}
	mode, ok := preferredMode(conf.Format, modes)
	if !ok {
		return HardwareConfig{}, errors.Errorf("none of the camera's modes (%#08x) is supported", modes)
	}
	conf.Mode = mode

	info, err := driver.Feature(ctx, dcam.FeatureWhiteBalance)
	if err != nil {
		return HardwareConfig{}, errors.Wrap(err, "querying white balance")
	}
	if info.Present && info.Readable {
		blue, red, err := driver.WhiteBalance(ctx)
		if err != nil {
			return HardwareConfig{}, errors.Wrap(err, "reading white balance")
		}
		// Factory gains are taken to mean a gain of 1.0.
		if blue != 0 && red != 0 {
			conf.BlueGainNorm = float64(blue)
			conf.RedGainNorm = float64(red)
		}
	}
	return conf, nil
}

func preferredMode(format dcam.Format, modes uint32) (dcam.Mode, bool) {
	if format == dcam.FormatVGANonCompressed {
		for _, mode := range fixedModePreference {
			if modes&dcam.Bit(mode.Number()) != 0 {
				return mode, true
			}
		}
		return 0, false
	}
	for mode := dcam.ModeFormat7_7; mode >= dcam.ModeFormat7_0; mode-- {
		if modes&dcam.Bit(mode.Number()) != 0 {
			return mode, true
		}
	}
	return 0, false
}
