package jpeg

import (
	"fmt"
	"sync"
	"unsafe"
)

// scratch is the working state of one encode call. It is acquired when the
// call starts and released on every exit path; nothing else ever sees it.
type scratch struct {
	// MCU samples, level-shifted, in natural order.
	y              [4]block
	cbFull, crFull [4]block
	cb, cr         block
	// coef is the quantized block in zig-zag order.
	coef block
	// quant is the scaled quantization tables, in zig-zag order.
	quant [nQuantIndex][blockSize]byte
	huff  [nHuffIndex]huffmanLUT
	w     bitWriter
	// chunk backs w.chunk.
	chunk []byte
}

// scratchFixedSize is the part of the scratch state independent of the
// chunk size.
const scratchFixedSize = int(unsafe.Sizeof(scratch{}))

// scratchSize is the memory one encode call needs for a given chunk size.
func scratchSize(chunkSize int) int {
	return scratchFixedSize + chunkSize
}

var scratchPool = sync.Pool{
	New: func() interface{} {
		return new(scratch)
	},
}

// acquireScratch returns zeroed scratch state with a chunk buffer of
// chunkSize bytes, or ErrAllocationFailure if that would exceed limit.
func acquireScratch(chunkSize, limit int) (*scratch, error) {
	if need := scratchSize(chunkSize); need > limit {
		return nil, fmt.Errorf("%w: need %d bytes, limit %d", ErrAllocationFailure, need, limit)
	}
	s := scratchPool.Get().(*scratch)
	chunk := s.chunk
	if cap(chunk) < chunkSize {
		chunk = make([]byte, 0, chunkSize)
	}
	*s = scratch{chunk: chunk[:0:chunkSize]}
	return s, nil
}

// releaseScratch wipes s and returns it to the pool. The chunk bytes are
// cleared too so no image data lingers between calls.
func releaseScratch(s *scratch) {
	chunk := s.chunk[:cap(s.chunk)]
	clear(chunk)
	*s = scratch{chunk: chunk[:0]}
	scratchPool.Put(s)
}
