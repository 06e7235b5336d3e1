// Package inject provides test doubles that wrap a real implementation and let a test
// replace individual methods.
package inject

import (
	"context"

	"go.viam.com/iidc/dcam"
)

// Driver is an injected register-level driver.
type Driver struct {
	dcam.Driver
	ResetFunc             func(ctx context.Context) error
	IdentityFunc          func(ctx context.Context) (dcam.Identity, error)
	FeatureFunc           func(ctx context.Context, feature dcam.Feature) (dcam.FeatureInfo, error)
	ShutterFunc           func(ctx context.Context) (uint32, error)
	SetShutterFunc        func(ctx context.Context, value uint32) error
	WhiteBalanceFunc      func(ctx context.Context) (uint32, uint32, error)
	SetWhiteBalanceFunc   func(ctx context.Context, blue, red uint32) error
	TransmittingFunc      func(ctx context.Context) (bool, error)
	StartTransmissionFunc func(ctx context.Context) error
	StopTransmissionFunc  func(ctx context.Context) error
	OneShotFunc           func(ctx context.Context) (bool, error)
	SetOneShotFunc        func(ctx context.Context, on bool) error
	PacketsPerFrameFunc   func(ctx context.Context, mode dcam.Mode) (int, error)
}

// Reset calls the injected Reset or the real version.
func (d *Driver) Reset(ctx context.Context) error {
	if d.ResetFunc == nil {
		return d.Driver.Reset(ctx)
	}
	return d.ResetFunc(ctx)
}

// Identity calls the injected Identity or the real version.
func (d *Driver) Identity(ctx context.Context) (dcam.Identity, error) {
	if d.IdentityFunc == nil {
		return d.Driver.Identity(ctx)
	}
	return d.IdentityFunc(ctx)
}

// Feature calls the injected Feature or the real version.
func (d *Driver) Feature(ctx context.Context, feature dcam.Feature) (dcam.FeatureInfo, error) {
	if d.FeatureFunc == nil {
		return d.Driver.Feature(ctx, feature)
	}
	return d.FeatureFunc(ctx, feature)
}

// Shutter calls the injected Shutter or the real version.
func (d *Driver) Shutter(ctx context.Context) (uint32, error) {
	if d.ShutterFunc == nil {
		return d.Driver.Shutter(ctx)
	}
	return d.ShutterFunc(ctx)
}

// SetShutter calls the injected SetShutter or the real version.
func (d *Driver) SetShutter(ctx context.Context, value uint32) error {
	if d.SetShutterFunc == nil {
		return d.Driver.SetShutter(ctx, value)
	}
	return d.SetShutterFunc(ctx, value)
}

// WhiteBalance calls the injected WhiteBalance or the real version.
func (d *Driver) WhiteBalance(ctx context.Context) (uint32, uint32, error) {
	if d.WhiteBalanceFunc == nil {
		return d.Driver.WhiteBalance(ctx)
	}
	return d.WhiteBalanceFunc(ctx)
}

// SetWhiteBalance calls the injected SetWhiteBalance or the real version.
func (d *Driver) SetWhiteBalance(ctx context.Context, blue, red uint32) error {
	if d.SetWhiteBalanceFunc == nil {
		return d.Driver.SetWhiteBalance(ctx, blue, red)
	}
	return d.SetWhiteBalanceFunc(ctx, blue, red)
}

// Transmitting calls the injected Transmitting or the real version.
func (d *Driver) Transmitting(ctx context.Context) (bool, error) {
	if d.TransmittingFunc == nil {
		return d.Driver.Transmitting(ctx)
	}
	return d.TransmittingFunc(ctx)
}

// StartTransmission calls the injected StartTransmission or the real version.
func (d *Driver) StartTransmission(ctx context.Context) error {
	if d.StartTransmissionFunc == nil {
		return d.Driver.StartTransmission(ctx)
	}
	return d.StartTransmissionFunc(ctx)
}

// StopTransmission calls the injected StopTransmission or the real version.
func (d *Driver) StopTransmission(ctx context.Context) error {
	if d.StopTransmissionFunc == nil {
		return d.Driver.StopTransmission(ctx)
	}
	return d.StopTransmissionFunc(ctx)
}

// OneShot calls the injected OneShot or the real version.
func (d *Driver) OneShot(ctx context.Context) (bool, error) {
	if d.OneShotFunc == nil {
		return d.Driver.OneShot(ctx)
	}
	return d.OneShotFunc(ctx)
}

// SetOneShot calls the injected SetOneShot or the real version.
func (d *Driver) SetOneShot(ctx context.Context, on bool) error {
	if d.SetOneShotFunc == nil {
		return d.Driver.SetOneShot(ctx, on)
	}
	return d.SetOneShotFunc(ctx, on)
}

// PacketsPerFrame calls the injected PacketsPerFrame or the real version.
func (d *Driver) PacketsPerFrame(ctx context.Context, mode dcam.Mode) (int, error) {
	if d.PacketsPerFrameFunc == nil {
		return d.Driver.PacketsPerFrame(ctx, mode)
	}
	return d.PacketsPerFrameFunc(ctx, mode)
}
