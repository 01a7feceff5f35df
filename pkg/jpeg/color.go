package jpeg

// Fixed-point BT.601 (JFIF full range) coefficients with 16 fractional bits.
const (
	fixYR  = 19595
	fixYG  = 38470
	fixYB  = 7471
	fixCbR = -11059
	fixCbG = -21709
	fixCbB = 32768
	fixCrR = 32768
	fixCrG = -27439
	fixCrB = -5329

	fixHalf   = 1 << 15
	fixCenter = 128 << 16
)

// levelShift is subtracted from every sample before the forward DCT.
const levelShift = 128

// rgbToYCbCr converts 8-bit RGB to 8-bit YCbCr, rounding half up.
func rgbToYCbCr(r, g, b int32) (yy, cb, cr int32) {
	yy = (fixYR*r + fixYG*g + fixYB*b + fixHalf) >> 16
	cb = (fixCbR*r + fixCbG*g + fixCbB*b + fixCenter + fixHalf) >> 16
	cr = (fixCrR*r + fixCrG*g + fixCrB*b + fixCenter + fixHalf) >> 16
	return clamp8(yy), clamp8(cb), clamp8(cr)
}

func clamp8(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// expand5 and expand6 widen RGB565 channels to 8 bits by bit replication.
func expand5(v int32) int32 { return v<<3 | v>>2 }
func expand6(v int32) int32 { return v<<2 | v>>4 }

// scale scales the 16x16 region represented by the 4 src blocks to the 8x8
// dst block, averaging each 2x2 neighbourhood with round-half-up.
func scale(dst *block, src *[4]block) {
	for i := 0; i < 4; i++ {
		dstOff := (i&2)<<4 | (i&1)<<2
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				j := 16*y + 2*x
				sum := src[i][j] + src[i][j+1] + src[i][j+8] + src[i][j+9]
				dst[8*y+x+dstOff] = (sum + 2) >> 2
			}
		}
	}
}
