package jpeg

import (
	"bytes"
	"image"
	stdjpeg "image/jpeg"
	"testing"
)

type rgbFunc func(x, y int) (r, g, b uint8)

func gradient(w, h int) rgbFunc {
	return func(x, y int) (uint8, uint8, uint8) {
		return uint8(x * 255 / max(w-1, 1)), uint8(y * 255 / max(h-1, 1)), uint8((x + y) * 255 / max(w+h-2, 1))
	}
}

func solid(r, g, b uint8) rgbFunc {
	return func(x, y int) (uint8, uint8, uint8) { return r, g, b }
}

func checkerboard(x, y int) (uint8, uint8, uint8) {
	if (x+y)%2 == 0 {
		return 0, 0, 0
	}
	return 255, 255, 255
}

// createTestImage renders f into a raw frame of the given format.
func createTestImage(w, h int, format PixelFormat, quality int, f rgbFunc) Image {
	img := Image{Width: w, Height: h, Format: format, Quality: quality}
	pix := make([]byte, format.FrameSize(w, h))
	ycc := func(x, y int) (uint8, uint8, uint8) {
		r, g, b := f(x, y)
		yy, cb, cr := rgbToYCbCr(int32(r), int32(g), int32(b))
		return uint8(yy), uint8(cb), uint8(cr)
	}
	switch format {
	case FormatRGB24, FormatBGR24:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := f(x, y)
				i := 3 * (y*w + x)
				if format == FormatBGR24 {
					r, b = b, r
				}
				pix[i], pix[i+1], pix[i+2] = r, g, b
			}
		}
	case FormatRGB565, FormatRGB565X:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := f(x, y)
				v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
				i := 2 * (y*w + x)
				if format == FormatRGB565 {
					pix[i], pix[i+1] = byte(v), byte(v>>8)
				} else {
					pix[i], pix[i+1] = byte(v>>8), byte(v)
				}
			}
		}
	case FormatYUYV, FormatUYVY:
		stride := packedStride(w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x += 2 {
				y0, cb, cr := ycc(x, y)
				y1 := y0
				if x+1 < w {
					y1, _, _ = ycc(x+1, y)
				}
				i := y*stride + x*2
				if format == FormatYUYV {
					pix[i], pix[i+1], pix[i+2], pix[i+3] = y0, cb, y1, cr
				} else {
					pix[i], pix[i+1], pix[i+2], pix[i+3] = cb, y0, cr, y1
				}
			}
		}
	case FormatYUV420:
		cw := (w + 1) / 2
		cbOff := w * h
		crOff := cbOff + cw*((h+1)/2)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yy, cb, cr := ycc(x, y)
				pix[y*w+x] = yy
				if x%2 == 0 && y%2 == 0 {
					pix[cbOff+y/2*cw+x/2] = cb
					pix[crOff+y/2*cw+x/2] = cr
				}
			}
		}
	case FormatGrey:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yy, _, _ := ycc(x, y)
				pix[y*w+x] = yy
			}
		}
	}
	img.Pix = pix
	return img
}

// collect encodes img through the callback path and concatenates the
// chunks, checking that every index matches the running offset.
func collect(t *testing.T, img Image, o *Options) []byte {
	t.Helper()
	var out []byte
	err := EncodeToCallback(img, func(arg any, index int, data []byte) int {
		if index != len(out) {
			t.Errorf("chunk index = %d, want %d", index, len(out))
		}
		if len(data) == 0 {
			t.Error("empty chunk delivered")
		}
		out = append(out, data...)
		return len(data)
	}, nil, o)
	if err != nil {
		t.Fatalf("EncodeToCallback failed: %v", err)
	}
	return out
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	m, err := stdjpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
	return m
}

// meanAbsError compares the decoded image against f in RGB space.
func meanAbsError(m image.Image, f rgbFunc) float64 {
	b := m.Bounds()
	var sum, n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := m.At(x, y).RGBA()
			wr, wg, wb := f(x-b.Min.X, y-b.Min.Y)
			sum += absDiff(r>>8, wr) + absDiff(g>>8, wg) + absDiff(bb>>8, wb)
			n += 3
		}
	}
	return sum / n
}

func absDiff(a uint32, b uint8) float64 {
	d := float64(a) - float64(b)
	if d < 0 {
		return -d
	}
	return d
}
