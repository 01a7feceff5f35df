package jpeg

// pixelSource reads samples straight out of the caller's buffer. It never
// copies or converts the whole frame.
type pixelSource struct {
	pix    []byte
	width  int
	height int
	format PixelFormat

	// Plane offsets and chroma stride for FormatYUV420.
	cbOff, crOff, cStride int
}

func newPixelSource(img Image) pixelSource {
	s := pixelSource{
		pix:    img.Pix,
		width:  img.Width,
		height: img.Height,
		format: img.Format,
	}
	if img.Format == FormatYUV420 {
		s.cStride = (img.Width + 1) / 2
		s.cbOff = img.Width * img.Height
		s.crOff = s.cbOff + s.cStride*((img.Height+1)/2)
	}
	return s
}

// ycc returns the YCbCr samples of the pixel at (x, y). Coordinates past the
// right or bottom edge are clamped, replicating the last column and row.
func (s *pixelSource) ycc(x, y int) (yy, cb, cr int32) {
	if x >= s.width {
		x = s.width - 1
	}
	if y >= s.height {
		y = s.height - 1
	}
	p := s.pix
	switch s.format {
	case FormatRGB565, FormatRGB565X:
		i := 2 * (y*s.width + x)
		v := int32(p[i]) | int32(p[i+1])<<8
		if s.format == FormatRGB565X {
			v = int32(p[i])<<8 | int32(p[i+1])
		}
		return rgbToYCbCr(expand5(v>>11), expand6(v>>5&0x3f), expand5(v&0x1f))
	case FormatRGB24:
		i := 3 * (y*s.width + x)
		return rgbToYCbCr(int32(p[i]), int32(p[i+1]), int32(p[i+2]))
	case FormatBGR24:
		i := 3 * (y*s.width + x)
		return rgbToYCbCr(int32(p[i+2]), int32(p[i+1]), int32(p[i]))
	case FormatYUYV:
		i := y*packedStride(s.width) + x/2*4
		return int32(p[i+2*(x&1)]), int32(p[i+1]), int32(p[i+3])
	case FormatUYVY:
		i := y*packedStride(s.width) + x/2*4
		return int32(p[i+1+2*(x&1)]), int32(p[i]), int32(p[i+2])
	case FormatYUV420:
		ci := y/2*s.cStride + x/2
		return int32(p[y*s.width+x]), int32(p[s.cbOff+ci]), int32(p[s.crOff+ci])
	case FormatGrey:
		return int32(p[y*s.width+x]), 128, 128
	}
	// Unreachable: formats are validated before a pixelSource is built.
	return 0, 128, 128
}

// loadMCU fills yBlocks with the four luma blocks of the 16x16 MCU whose
// top-left pixel is (x0, y0) and cb/cr with the subsampled chroma blocks.
// All samples are level-shifted. Luma blocks are ordered top-left,
// top-right, bottom-left, bottom-right.
func (s *pixelSource) loadMCU(x0, y0 int, sc *scratch) {
	for i := 0; i < 4; i++ {
		xOff := (i & 1) * 8
		yOff := (i & 2) * 4
		yb, cbb, crb := &sc.y[i], &sc.cbFull[i], &sc.crFull[i]
		for j := 0; j < 8; j++ {
			for k := 0; k < 8; k++ {
				yy, cb, cr := s.ycc(x0+xOff+k, y0+yOff+j)
				yb[8*j+k] = yy - levelShift
				cbb[8*j+k] = cb - levelShift
				crb[8*j+k] = cr - levelShift
			}
		}
	}
	scale(&sc.cb, &sc.cbFull)
	scale(&sc.cr, &sc.crFull)
}
