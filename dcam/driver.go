package dcam

import "context"

// Driver gives register-level access to one camera node. Every call is a bus round trip
// and may fail; implementations need not be safe for concurrent use.
type Driver interface {
	// Reset returns the camera to its power-up defaults.
	Reset(ctx context.Context) error
	Identity(ctx context.Context) (Identity, error)

	// SupportedFormats returns the format inquiry bitfield (Format 0 is Bit(0)).
	SupportedFormats(ctx context.Context) (uint32, error)
	// SupportedModes returns the mode inquiry bitfield for a format.
	SupportedModes(ctx context.Context, format Format) (uint32, error)
	// SupportedFrameRates returns the Format 0 frame rate inquiry bitfield for a mode.
	SupportedFrameRates(ctx context.Context, format Format, mode Mode) (uint32, error)

	FrameRate(ctx context.Context) (FrameRate, error)
	SetFrameRate(ctx context.Context, rate FrameRate) error

	Format7Registers

	Feature(ctx context.Context, feature Feature) (FeatureInfo, error)
	Shutter(ctx context.Context) (uint32, error)
	SetShutter(ctx context.Context, value uint32) error
	WhiteBalance(ctx context.Context) (blue, red uint32, err error)
	SetWhiteBalance(ctx context.Context, blue, red uint32) error
	Trigger(ctx context.Context) (bool, error)
	SetTrigger(ctx context.Context, on bool) error
	TriggerPolarity(ctx context.Context) (bool, error)
	SetTriggerPolarity(ctx context.Context, high bool) error
	SetTriggerMode(ctx context.Context, mode uint32) error

	// Transmitting reports whether continuous isochronous transmission is enabled.
	Transmitting(ctx context.Context) (bool, error)
	StartTransmission(ctx context.Context) error
	StopTransmission(ctx context.Context) error
	// OneShot reads the one-shot register, which clears itself after one frame.
	OneShot(ctx context.Context) (bool, error)
	SetOneShot(ctx context.Context, on bool) error
}

// Format7Registers are the scalable image size registers of a Format 7 mode.
type Format7Registers interface {
	MaxImageSize(ctx context.Context, mode Mode) (width, height int, err error)
	UnitSize(ctx context.Context, mode Mode) (width, height int, err error)
	UnitPosition(ctx context.Context, mode Mode) (left, top int, err error)
	ImageSize(ctx context.Context, mode Mode) (width, height int, err error)
	ImagePosition(ctx context.Context, mode Mode) (left, top int, err error)
	SetImagePosition(ctx context.Context, mode Mode, left, top int) error
	// ColorCodings returns the color coding inquiry bitfield (ColorMono8 is Bit(0)).
	ColorCodings(ctx context.Context, mode Mode) (uint32, error)
	ColorCoding(ctx context.Context, mode Mode) (ColorID, error)
	SetColorCoding(ctx context.Context, mode Mode, id ColorID) error
	// PacketParameters returns the packet size quantum and the maximum packet size in bytes.
	PacketParameters(ctx context.Context, mode Mode) (unit, max int, err error)
	PacketsPerFrame(ctx context.Context, mode Mode) (int, error)
}
