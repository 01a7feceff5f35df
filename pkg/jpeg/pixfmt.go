package jpeg

import (
	"fmt"
	"strings"
)

// PixelFormat is a V4L2 FourCC pixel format tag as defined in
// linux/videodev2.h. Only the formats listed in SupportedFormats are
// accepted by the encoder; anything else is rejected.
type PixelFormat uint32

// Fourcc builds a PixelFormat the way v4l2_fourcc does.
func Fourcc(a, b, c, d byte) PixelFormat {
	return PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var (
	// FormatRGB565 is 16-bit little-endian rrrrrggg gggbbbbb.
	FormatRGB565 = Fourcc('R', 'G', 'B', 'P')
	// FormatRGB565X is FormatRGB565 with the two bytes swapped (big-endian).
	FormatRGB565X = Fourcc('R', 'G', 'B', 'R')
	// FormatRGB24 is packed 8-bit R, G, B.
	FormatRGB24 = Fourcc('R', 'G', 'B', '3')
	// FormatBGR24 is packed 8-bit B, G, R.
	FormatBGR24 = Fourcc('B', 'G', 'R', '3')
	// FormatYUYV is packed 4:2:2, Y0 Cb Y1 Cr.
	FormatYUYV = Fourcc('Y', 'U', 'Y', 'V')
	// FormatUYVY is packed 4:2:2, Cb Y0 Cr Y1.
	FormatUYVY = Fourcc('U', 'Y', 'V', 'Y')
	// FormatYUV420 is planar I420: a full Y plane followed by Cb and Cr
	// planes of ceil(w/2) x ceil(h/2) samples.
	FormatYUV420 = Fourcc('Y', 'U', '1', '2')
	// FormatGrey is 8-bit luma only.
	FormatGrey = Fourcc('G', 'R', 'E', 'Y')
)

var formatNames = []struct {
	format PixelFormat
	name   string
}{
	{FormatRGB565, "rgb565"},
	{FormatRGB565X, "rgb565x"},
	{FormatRGB24, "rgb24"},
	{FormatBGR24, "bgr24"},
	{FormatYUYV, "yuyv"},
	{FormatUYVY, "uyvy"},
	{FormatYUV420, "yuv420"},
	{FormatGrey, "grey"},
}

// SupportedFormats returns the pixel formats the encoder accepts.
func SupportedFormats() []PixelFormat {
	formats := make([]PixelFormat, len(formatNames))
	for i, fn := range formatNames {
		formats[i] = fn.format
	}
	return formats
}

// Supported reports whether f is one of SupportedFormats.
func (f PixelFormat) Supported() bool {
	for _, fn := range formatNames {
		if fn.format == f {
			return true
		}
	}
	return false
}

// Name returns the short lower-case name of a supported format, or "" for
// unsupported ones.
func (f PixelFormat) Name() string {
	for _, fn := range formatNames {
		if fn.format == f {
			return fn.name
		}
	}
	return ""
}

// String renders the FourCC characters, e.g. "RGB3".
func (f PixelFormat) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

// ParsePixelFormat accepts a FourCC ("RGB3") or a short name ("rgb24").
func ParsePixelFormat(s string) (PixelFormat, error) {
	lower := strings.ToLower(s)
	if lower == "gray" {
		lower = "grey"
	}
	for _, fn := range formatNames {
		if fn.name == lower {
			return fn.format, nil
		}
	}
	if len(s) == 4 {
		f := Fourcc(s[0], s[1], s[2], s[3])
		if f.Supported() {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FrameSize returns the number of bytes a width x height frame occupies in
// format f, or 0 if f is unsupported.
func (f PixelFormat) FrameSize(width, height int) int {
	switch f {
	case FormatRGB565, FormatRGB565X:
		return width * height * 2
	case FormatRGB24, FormatBGR24:
		return width * height * 3
	case FormatYUYV, FormatUYVY:
		return packedStride(width) * height
	case FormatYUV420:
		cw, ch := (width+1)/2, (height+1)/2
		return width*height + 2*cw*ch
	case FormatGrey:
		return width * height
	}
	return 0
}

// packedStride is the row length in bytes of a packed 4:2:2 frame.
func packedStride(width int) int {
	return (width + 1) / 2 * 4
}
