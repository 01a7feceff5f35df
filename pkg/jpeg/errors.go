package jpeg

import "errors"

var (
	// ErrInvalidDimensions is returned for zero, negative or oversized
	// dimensions, and for source buffers shorter than the frame they describe.
	ErrInvalidDimensions = errors.New("jpeg: invalid dimensions")
	// ErrUnsupportedFormat is returned for pixel formats outside
	// SupportedFormats.
	ErrUnsupportedFormat = errors.New("jpeg: unsupported pixel format")
	// ErrAllocationFailure is returned when the scratch state for a call
	// cannot be obtained within Options.ScratchLimit.
	ErrAllocationFailure = errors.New("jpeg: scratch allocation failed")
	// ErrSinkWriteFailed is returned when the output consumer did not accept
	// a whole chunk.
	ErrSinkWriteFailed = errors.New("jpeg: sink write failed")
	// ErrInternalEncodingFault signals a violated entropy coder or bitstream
	// invariant. It indicates a bug, not bad input.
	ErrInternalEncodingFault = errors.New("jpeg: internal encoding fault")
)

// ErrorKind names the class of an encoder error.
type ErrorKind string

const (
	KindNone                  ErrorKind = "none"
	KindInvalidDimensions     ErrorKind = "invalid_dimensions"
	KindUnsupportedFormat     ErrorKind = "unsupported_format"
	KindAllocationFailure     ErrorKind = "allocation_failure"
	KindSinkWriteFailed       ErrorKind = "sink_write_failed"
	KindInternalEncodingFault ErrorKind = "internal_encoding_fault"
	KindOther                 ErrorKind = "other"
)

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidDimensions):
		return KindInvalidDimensions
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrAllocationFailure):
		return KindAllocationFailure
	case errors.Is(err, ErrSinkWriteFailed):
		return KindSinkWriteFailed
	case errors.Is(err, ErrInternalEncodingFault):
		return KindInternalEncodingFault
	}
	return KindOther
}
