package jpeg

// writeBlock transforms, quantizes and entropy codes b (level-shifted
// samples in natural order) using quantization table q, returning the
// post-quantized DC value of the block. prevDC is the DC value of the
// previous block of the same component.
func (s *scratch) writeBlock(b *block, q quantIndex, prevDC int32) int32 {
	fdct(b)
	quantize(&s.coef, b, &s.quant[q])
	w := &s.w
	dcTable, acTable := &s.huff[2*int(q)], &s.huff[2*int(q)+1]

	// Emit the DC delta.
	dc := s.coef[0]
	w.emitHuffRLE(dcTable, maxDCCategory, 0, dc-prevDC)

	// Emit the AC components. A zero always extends the current run.
	runLength := int32(0)
	for zig := 1; zig < blockSize; zig++ {
		ac := s.coef[zig]
		if ac == 0 {
			runLength++
			continue
		}
		for runLength > 15 {
			w.emitHuff(acTable, symbolZRL)
			runLength -= 16
		}
		w.emitHuffRLE(acTable, maxACCategory, runLength, ac)
		runLength = 0
	}
	if runLength > 0 {
		w.emitHuff(acTable, symbolEOB)
	}
	return dc
}
