package converter

import (
	"image"

	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
)

// Describe lays a decoded image out as a raw frame the encoder accepts.
// 4:2:0 YCbCr images become YU12, grayscale images GREY, and everything
// else packed RGB24. Quality is left at zero for the caller to set.
func Describe(img image.Image) jpeg.Image {
	switch m := img.(type) {
	case *image.YCbCr:
		if m.SubsampleRatio == image.YCbCrSubsampleRatio420 {
			return describeYCbCr420(m)
		}
	case *image.Gray:
		return describeGray(m)
	case *image.RGBA:
		return describeRGBA(m)
	}
	return describeGeneric(img)
}

func describeYCbCr420(m *image.YCbCr) jpeg.Image {
	b := m.Rect
	w, h := b.Dx(), b.Dy()
	cw, ch := (w+1)/2, (h+1)/2
	pix := make([]byte, jpeg.FormatYUV420.FrameSize(w, h))

	for y := 0; y < h; y++ {
		off := m.YOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w:(y+1)*w], m.Y[off:off+w])
	}
	cb, cr := pix[w*h:w*h+cw*ch], pix[w*h+cw*ch:]
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			off := m.COffset(b.Min.X+2*x, b.Min.Y+2*y)
			cb[y*cw+x] = m.Cb[off]
			cr[y*cw+x] = m.Cr[off]
		}
	}
	return jpeg.Image{Pix: pix, Width: w, Height: h, Format: jpeg.FormatYUV420}
}

func describeGray(m *image.Gray) jpeg.Image {
	b := m.Rect
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := m.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w:(y+1)*w], m.Pix[off:off+w])
	}
	return jpeg.Image{Pix: pix, Width: w, Height: h, Format: jpeg.FormatGrey}
}

func describeRGBA(m *image.RGBA) jpeg.Image {
	b := m.Rect
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		src := m.Pix[m.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := pix[3*w*y:]
		for x := 0; x < w; x++ {
			dst[3*x] = src[4*x]
			dst[3*x+1] = src[4*x+1]
			dst[3*x+2] = src[4*x+2]
		}
	}
	return jpeg.Image{Pix: pix, Width: w, Height: h, Format: jpeg.FormatRGB24}
}

// describeGeneric composites over black, since JPEG has no alpha.
func describeGeneric(img image.Image) jpeg.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 3*w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			pix[i], pix[i+1], pix[i+2] = uint8(r>>8), uint8(g>>8), uint8(bb>>8)
			i += 3
		}
	}
	return jpeg.Image{Pix: pix, Width: w, Height: h, Format: jpeg.FormatRGB24}
}
