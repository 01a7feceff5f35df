package jpeg

type quantIndex int

const (
	quantIndexLuminance quantIndex = iota
	quantIndexChrominance
	nQuantIndex
)

// unscaledQuant are the unscaled quantization tables in zig-zag order. Each
// encode call copies and scales the tables according to its quality. The
// values are derived from section K.1 after converting from natural to
// zig-zag order.
var unscaledQuant = [nQuantIndex][blockSize]byte{
	// Luminance.
	{
		16, 11, 12, 14, 12, 10, 16, 14,
		13, 14, 18, 17, 16, 19, 24, 40,
		26, 24, 22, 22, 24, 49, 35, 37,
		29, 40, 58, 51, 61, 60, 57, 51,
		56, 55, 64, 72, 92, 78, 64, 68,
		87, 69, 55, 56, 80, 109, 81, 87,
		95, 98, 103, 104, 103, 62, 77, 113,
		121, 112, 100, 120, 92, 101, 103, 99,
	},
	// Chrominance.
	{
		17, 18, 18, 24, 21, 24, 47, 26,
		26, 47, 99, 66, 56, 66, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	},
}

const (
	// DefaultQuality is the quality hosts fall back to when the caller
	// gives none (the DEFAULT_QUALITY setting and the CLI -q flag). The
	// encoder itself clamps Image.Quality, so zero encodes as MinQuality.
	DefaultQuality = 75
	MinQuality     = 1
	MaxQuality     = 100
)

// ClampQuality clips q to [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// qualityScale converts a clamped quality rating to a percentage scaling
// factor for the reference tables.
func qualityScale(quality int) int {
	if quality < 50 {
		return 5000 / quality
	}
	return 200 - quality*2
}

// scaleQuant fills dst with the reference tables scaled for quality. No
// entry is ever zero.
func scaleQuant(dst *[nQuantIndex][blockSize]byte, quality int) {
	s := qualityScale(ClampQuality(quality))
	for i := range dst {
		for j := range dst[i] {
			x := (int(unscaledQuant[i][j])*s + 50) / 100
			if x < 1 {
				x = 1
			} else if x > 255 {
				x = 255
			}
			dst[i][j] = uint8(x)
		}
	}
}

// div returns a/b rounded to the nearest integer, instead of rounded to zero.
func div(a, b int32) int32 {
	if a >= 0 {
		return (a + (b >> 1)) / b
	}
	return -((-a + (b >> 1)) / b)
}

// quantize divides the DCT output in b by the table q, storing the result in
// zig-zag order in dst.
func quantize(dst *block, b *block, q *[blockSize]byte) {
	for zig := 0; zig < blockSize; zig++ {
		dst[zig] = div(b[unzig[zig]], 8*int32(q[zig]))
	}
}
