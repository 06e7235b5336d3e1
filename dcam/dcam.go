// Package dcam contains the IIDC (1394-based Digital Camera) protocol enumerations and the
// register-level driver contract that camera engines are built on.
package dcam

import (
	"fmt"
	"strings"
)

// Format is an IIDC video format. Zero is never a valid format.
type Format uint32

// Supported and recognised formats.
const (
	FormatVGANonCompressed   Format = 384 + iota // Format 0
	FormatSVGANonCompressed1                     // Format 1
	FormatSVGANonCompressed2                     // Format 2
	formatReserved3
	formatReserved4
	formatReserved5
	FormatStillImage        // Format 6
	FormatScalableImageSize // Format 7
)

// Number returns the IIDC format number (0 to 7).
func (f Format) Number() int {
	return int(f) - int(FormatVGANonCompressed)
}

func (f Format) String() string {
	if f < FormatVGANonCompressed || f > FormatScalableImageSize {
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
	return fmt.Sprintf("Format %d", f.Number())
}

// Mode is an IIDC video mode within a format.
type Mode uint32

// Format 0 modes.
const (
	Mode160x120YUV444 Mode = 64 + iota
	Mode320x240YUV422
	Mode640x480YUV411
	Mode640x480YUV422
	Mode640x480RGB
	Mode640x480Mono
	Mode640x480Mono16
)

// Format 7 modes.
const (
	ModeFormat7_0 Mode = 288 + iota
	ModeFormat7_1
	ModeFormat7_2
	ModeFormat7_3
	ModeFormat7_4
	ModeFormat7_5
	ModeFormat7_6
	ModeFormat7_7
)

// IsFormat0 reports whether the mode belongs to FormatVGANonCompressed.
func (m Mode) IsFormat0() bool {
	return m >= Mode160x120YUV444 && m <= Mode640x480Mono16
}

// IsFormat7 reports whether the mode belongs to FormatScalableImageSize.
func (m Mode) IsFormat7() bool {
	return m >= ModeFormat7_0 && m <= ModeFormat7_7
}

// Number returns the mode number within its format, or -1.
func (m Mode) Number() int {
	switch {
	case m.IsFormat0():
		return int(m - Mode160x120YUV444)
	case m.IsFormat7():
		return int(m - ModeFormat7_0)
	}
	return -1
}

func (m Mode) String() string {
	if n := m.Number(); n >= 0 {
		return fmt.Sprintf("Mode %d", n)
	}
	return fmt.Sprintf("Mode(%d)", uint32(m))
}

// ColorID is a Format 7 color coding register value.
type ColorID uint32

// Format 7 color codings. Zero means "unsupported".
const (
	ColorMono8 ColorID = 320 + iota
	ColorYUV411
	ColorYUV422
	ColorYUV444
	ColorRGB8
	ColorMono16
	ColorRGB16
)

// FrameRate is a Format 0 frame rate register index.
type FrameRate uint32

// Format 0 frame rate indices, 1.875 fps doubling up to 240 fps.
const (
	FrameRate1_875 FrameRate = 32 + iota
	FrameRate3_75
	FrameRate7_5
	FrameRate15
	FrameRate30
	FrameRate60
	FrameRate120
	FrameRate240
)

// Speed is the isochronous bus speed class.
type Speed int

// Bus speeds in Mb/s.
const (
	Speed100 Speed = iota
	Speed200
	Speed400
)

func (s Speed) String() string {
	switch s {
	case Speed100:
		return "S100"
	case Speed200:
		return "S200"
	case Speed400:
		return "S400"
	}
	return fmt.Sprintf("Speed(%d)", int(s))
}

// Bit returns the capability bitfield bit for the n-th item of an inquiry register: item 0
// is the most significant bit.
func Bit(n int) uint32 {
	return 0x80000000 >> uint(n)
}

// InquiryMask covers the eight item bits used by format, mode and frame rate inquiries.
const InquiryMask uint32 = 0xFF000000

// Feature is an optional camera control.
type Feature int

// Optional features used by camera engines.
const (
	FeatureShutter Feature = iota
	FeatureWhiteBalance
	FeatureTrigger
)

func (f Feature) String() string {
	switch f {
	case FeatureShutter:
		return "shutter"
	case FeatureWhiteBalance:
		return "white balance"
	case FeatureTrigger:
		return "trigger"
	}
	return fmt.Sprintf("Feature(%d)", int(f))
}

// FeatureInfo is the inquiry register content of a feature.
type FeatureInfo struct {
	Present  bool
	Readable bool
	Min      uint32
	Max      uint32
	// HasPolarity is only meaningful for FeatureTrigger.
	HasPolarity bool
}

// Identity names a camera.
type Identity struct {
	Vendor string
	Model  string
	EUID   uint64
}

// Chip returns the unique chip identifier, the upper case hexadecimal EUID-64 followed by "h".
func (id Identity) Chip() string {
	return strings.ToUpper(fmt.Sprintf("%x", id.EUID)) + "h"
}
