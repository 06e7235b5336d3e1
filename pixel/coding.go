// Package pixel translates between IIDC format, mode and color coding registers and the
// device-independent pixel coding used by camera engines.
package pixel

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/iidc/dcam"
)

// Coding is a device-independent pixel coding.
type Coding int

// Known codings. The signed and raw codings exist for callers but have no IIDC register
// equivalent.
const (
	Invalid Coding = iota
	Mono8
	YUV411
	YUV422
	YUV444
	RGB8
	Mono16
	RGB16
	Mono16S
	RGB16S
	Raw8
	Raw16
)

var codingNames = map[Coding]string{
	Invalid: "invalid",
	Mono8:   "mono8",
	YUV411:  "yuv411",
	YUV422:  "yuv422",
	YUV444:  "yuv444",
	RGB8:    "rgb8",
	Mono16:  "mono16",
	RGB16:   "rgb16",
	Mono16S: "mono16s",
	RGB16S:  "rgb16s",
	Raw8:    "raw8",
	Raw16:   "raw16",
}

func (c Coding) String() string {
	if name, ok := codingNames[c]; ok {
		return name
	}
	return "invalid"
}

// ParseCoding is the inverse of Coding.String. Unknown names parse to Invalid with an error.
func ParseCoding(name string) (Coding, error) {
	coding, ok := lo.FindKey(codingNames, strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return Invalid, errors.Errorf("unknown pixel coding %q", name)
	}
	return coding, nil
}

var depths = map[Coding]int{
	Mono8:  8,
	YUV411: 12,
	YUV422: 16,
	Mono16: 16,
	YUV444: 24,
	RGB8:   24,
	RGB16:  48,
}

// Depth returns the number of bits per pixel.
func Depth(c Coding) (int, error) {
	depth, ok := depths[c]
	if !ok {
		return 0, errors.Errorf("pixel coding %v has no defined depth", c)
	}
	return depth, nil
}

// FrameBytes returns the size in bytes of a width by height frame.
func FrameBytes(width, height int, c Coding) (int, error) {
	depth, err := Depth(c)
	if err != nil {
		return 0, err
	}
	return width * height * depth / 8, nil
}

var fixedModes = map[dcam.Mode]Coding{
	dcam.Mode160x120YUV444: YUV444,
	dcam.Mode320x240YUV422: YUV422,
	dcam.Mode640x480YUV411: YUV411,
	dcam.Mode640x480YUV422: YUV422,
	dcam.Mode640x480RGB:    RGB8,
	dcam.Mode640x480Mono:   Mono8,
	dcam.Mode640x480Mono16: Mono16,
}

// FromMode returns the pixel coding of a fixed Format 0 mode, or Invalid.
func FromMode(mode dcam.Mode) Coding {
	return fixedModes[mode]
}

// ModeSize returns the frame size of a Format 0 mode.
func ModeSize(mode dcam.Mode) (width, height int) {
	switch mode {
	case dcam.Mode160x120YUV444:
		return 160, 120
	case dcam.Mode320x240YUV422:
		return 320, 240
	default:
		return 640, 480
	}
}

var colorIDs = map[dcam.ColorID]Coding{
	dcam.ColorMono8:  Mono8,
	dcam.ColorYUV411: YUV411,
	dcam.ColorYUV422: YUV422,
	dcam.ColorYUV444: YUV444,
	dcam.ColorRGB8:   RGB8,
	dcam.ColorMono16: Mono16,
	dcam.ColorRGB16:  RGB16,
}

// FromColorID returns the pixel coding of a Format 7 color coding id, or Invalid.
func FromColorID(id dcam.ColorID) Coding {
	return colorIDs[id]
}

// ColorID returns the Format 7 color coding id for c if the camera's color coding inquiry
// bitfield advertises it, and 0 otherwise.
func ColorID(c Coding, capabilities uint32) dcam.ColorID {
	id, ok := lo.FindKey(colorIDs, c)
	if !ok {
		return 0
	}
	if capabilities&dcam.Bit(int(id-dcam.ColorMono8)) == 0 {
		return 0
	}
	return id
}
