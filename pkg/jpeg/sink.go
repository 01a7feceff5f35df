package jpeg

import (
	"fmt"
	"io"
)

// OutputFunc receives the encoded stream chunk by chunk. arg is the opaque
// value passed to EncodeToCallback, index is the byte offset of data within
// the stream. It must return len(data) to continue; any other value aborts
// the encode with ErrSinkWriteFailed.
//
// data is only valid for the duration of the call. OutputFunc must not
// retain it.
type OutputFunc func(arg any, index int, data []byte) int

// sink is where finished chunks go.
type sink interface {
	consume(index int, chunk []byte) error
}

// bufferSink accumulates the whole stream in an owned, growable slice.
type bufferSink struct {
	buf []byte
}

func (s *bufferSink) consume(index int, chunk []byte) error {
	s.buf = append(s.buf, chunk...)
	return nil
}

// callbackSink hands every chunk to a caller supplied function.
type callbackSink struct {
	fn  OutputFunc
	arg any
}

func (s *callbackSink) consume(index int, chunk []byte) error {
	if n := s.fn(s.arg, index, chunk); n != len(chunk) {
		return fmt.Errorf("%w: consumer took %d of %d bytes at offset %d", ErrSinkWriteFailed, n, len(chunk), index)
	}
	return nil
}

// writerFunc is the OutputFunc used by Encode. arg is the io.Writer.
func writerFunc(arg any, index int, data []byte) int {
	n, err := arg.(io.Writer).Write(data)
	if err != nil {
		return -1
	}
	return n
}
