package jpeg

import (
	"fmt"
	"math/bits"
)

// bitWriter packs codes MSB-first and stages the resulting bytes in a
// fixed-size chunk that is handed to the sink whenever it fills up.
type bitWriter struct {
	sink sink
	// chunk holds staged bytes; cap(chunk) is the chunk size.
	chunk []byte
	// index is the stream offset of chunk[0].
	index int
	// bits and nBits are accumulated bits not yet written to chunk.
	bits, nBits uint32
	// err is the first error encountered. All attempted writes after the
	// first error become no-ops, so no chunk reaches the sink after a
	// failure.
	err error
	// buf is a scratch buffer for marker headers.
	buf [24]byte
}

func (w *bitWriter) reset(s sink, chunk []byte) {
	*w = bitWriter{sink: s, chunk: chunk[:0]}
}

// flush delivers the staged bytes, if any, to the sink.
func (w *bitWriter) flush() {
	if w.err != nil || len(w.chunk) == 0 {
		return
	}
	n := len(w.chunk)
	w.err = w.sink.consume(w.index, w.chunk)
	w.index += n
	w.chunk = w.chunk[:0]
}

func (w *bitWriter) writeByte(b byte) {
	if w.err != nil {
		return
	}
	w.chunk = append(w.chunk, b)
	if len(w.chunk) == cap(w.chunk) {
		w.flush()
	}
}

func (w *bitWriter) write(p []byte) {
	for len(p) > 0 && w.err == nil {
		n := copy(w.chunk[len(w.chunk):cap(w.chunk)], p)
		w.chunk = w.chunk[:len(w.chunk)+n]
		p = p[n:]
		if len(w.chunk) == cap(w.chunk) {
			w.flush()
		}
	}
}

// emit emits the least significant nBits bits of bits to the bit-stream.
// The precondition is bits < 1<<nBits && nBits <= 16.
func (w *bitWriter) emit(bits, nBits uint32) {
	nBits += w.nBits
	bits <<= 32 - nBits
	bits |= w.bits
	for nBits >= 8 {
		b := uint8(bits >> 24)
		w.writeByte(b)
		if b == 0xff {
			w.writeByte(0x00)
		}
		bits <<= 8
		nBits -= 8
	}
	w.bits, w.nBits = bits, nBits
}

// emitHuff emits the code for symbol from the given table.
func (w *bitWriter) emitHuff(h *huffmanLUT, symbol int32) {
	if symbol < 0 || symbol > 0xff || h[symbol] == 0 {
		w.fail(fmt.Errorf("%w: no huffman code for symbol %#x", ErrInternalEncodingFault, symbol))
		return
	}
	x := h[symbol]
	w.emit(x&(1<<24-1), x>>24)
}

// emitHuffRLE emits a run of runLength zeros followed by value, i.e. the
// (run, size) symbol and then the size value bits. Negative values are
// coded as their one's complement.
func (w *bitWriter) emitHuffRLE(h *huffmanLUT, maxCategory uint32, runLength, value int32) {
	a, b := value, value
	if a < 0 {
		a, b = -value, value-1
	}
	nBits := uint32(bits.Len32(uint32(a)))
	if nBits > maxCategory {
		w.fail(fmt.Errorf("%w: magnitude %d exceeds category %d", ErrInternalEncodingFault, value, maxCategory))
		return
	}
	w.emitHuff(h, runLength<<4|int32(nBits))
	if nBits > 0 {
		w.emit(uint32(b)&(1<<nBits-1), nBits)
	}
}

// padToByte completes a partial final byte with 1-bits.
func (w *bitWriter) padToByte() {
	if w.nBits > 0 {
		pad := 8 - w.nBits
		w.emit(1<<pad-1, pad)
	}
}

func (w *bitWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}
