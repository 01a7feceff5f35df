package converter

import (
	"sync"

	"github.com/harliandi/go-img2jpeg/pkg/metrics"
)

// BufferPool manages reusable output buffers for encoded JPEG streams
type BufferPool struct {
	small  sync.Pool // ~64KB buffers (thumbnails, small frames)
	medium sync.Pool // ~512KB buffers (typical JPEG output)
	large  sync.Pool // ~5MB buffers (large images)
	xlarge sync.Pool // ~10MB buffers (high quality, large images)
}

// Size class labels, also used as metric labels.
const (
	sizeSmall  = "small"
	sizeMedium = "medium"
	sizeLarge  = "large"
	sizeXLarge = "xlarge"
)

// Global buffer pool
var globalBufferPool = &BufferPool{}

// GetBuffer returns an empty buffer from the size class that fits size.
// Buffers grow past their class when an encode outruns the estimate.
func GetBuffer(size int) *[]byte {
	pool, class, capacity := globalBufferPool.class(size)
	if b, ok := pool.Get().(*[]byte); ok {
		metrics.RecordPoolHit(class)
		return b
	}
	metrics.RecordPoolMiss(class)
	b := make([]byte, 0, capacity)
	return &b
}

func (bp *BufferPool) class(size int) (*sync.Pool, string, int) {
	switch {
	case size <= 64*1024:
		return &bp.small, sizeSmall, 64 * 1024
	case size <= 512*1024:
		return &bp.medium, sizeMedium, 512 * 1024
	case size <= 5*1024*1024:
		return &bp.large, sizeLarge, 5 * 1024 * 1024
	default:
		return &bp.xlarge, sizeXLarge, 10 * 1024 * 1024
	}
}

// PutBuffer returns a buffer to the pool
func PutBuffer(b *[]byte) {
	// Reset length but keep capacity
	*b = (*b)[:0]

	// Return to appropriate pool based on capacity
	capacity := cap(*b)
	switch {
	case capacity == 64*1024:
		globalBufferPool.small.Put(b)
	case capacity == 512*1024:
		globalBufferPool.medium.Put(b)
	case capacity == 5*1024*1024:
		globalBufferPool.large.Put(b)
	case capacity == 10*1024*1024:
		globalBufferPool.xlarge.Put(b)
	// Don't pool buffers with unexpected sizes - let GC handle them
	}
}

// PooledBuffer is a reusable buffer wrapper
type PooledBuffer struct {
	buf *[]byte
}

// NewPooledBuffer creates a new pooled buffer
func NewPooledBuffer(size int) *PooledBuffer {
	return &PooledBuffer{
		buf: GetBuffer(size),
	}
}


// Write implements io.Writer so the encoder can stream into the buffer.
func (p *PooledBuffer) Write(data []byte) (int, error) {
	*p.buf = append(*p.buf, data...)
	return len(data), nil
}

// Len returns the current length
func (p *PooledBuffer) Len() int {
	return len(*p.buf)
}

// Release returns the buffer to the pool
func (p *PooledBuffer) Release() {
	PutBuffer(p.buf)
	p.buf = nil
}

// ToBytes converts to a new byte slice and releases the pooled buffer
func (p *PooledBuffer) ToBytes() []byte {
	result := make([]byte, len(*p.buf))
	copy(result, *p.buf)
	p.Release()
	return result
}
