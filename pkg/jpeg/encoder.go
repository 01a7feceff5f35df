// Package jpeg encodes raw camera-style pixel buffers to baseline JPEG with
// a small, call-scoped memory footprint.
//
// The whole working state of an encode (sample blocks, DCT coefficients,
// quantization and Huffman tables, bit accumulator and output chunk) is
// acquired when a call starts and released when it returns. Output is
// produced in fixed-size chunks, either collected into one buffer
// (EncodeToBuffer) or pushed to a callback as each chunk fills
// (EncodeToCallback). Both produce the same bytes.
//
// Every image is coded as YCbCr with 4:2:0 chroma subsampling and the
// standard Huffman tables of ITU-T T.81 Annex K.3.
package jpeg

import (
	"fmt"
	"io"
)

const (
	// MaxDimension is the largest width or height a baseline frame header
	// can describe.
	MaxDimension = 1<<16 - 1
	// DefaultChunkSize is the default size of output chunks.
	DefaultChunkSize = 1024
	// DefaultScratchLimit is the default upper bound on per-call scratch
	// memory.
	DefaultScratchLimit = 32 << 10
)

// Image describes a raw frame to encode. Pix is borrowed for the duration
// of the call and never modified.
type Image struct {
	Pix     []byte
	Width   int
	Height  int
	Format  PixelFormat
	Quality int
}

// Options are the encoding parameters. A nil *Options uses the defaults.
type Options struct {
	// ChunkSize is the number of bytes staged before they are handed to the
	// sink. Zero means DefaultChunkSize.
	ChunkSize int
	// ScratchLimit bounds the scratch memory of one call. Zero means
	// DefaultScratchLimit.
	ScratchLimit int
	// MaxPixels rejects larger frames with ErrInvalidDimensions. Zero
	// means no limit beyond MaxDimension.
	MaxPixels int
}

func (o *Options) chunkSize() int {
	if o == nil || o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o *Options) scratchLimit() int {
	if o == nil || o.ScratchLimit <= 0 {
		return DefaultScratchLimit
	}
	return o.ScratchLimit
}

func (o *Options) maxPixels() int {
	if o == nil {
		return 0
	}
	return o.MaxPixels
}

// Validate checks img against o without allocating anything.
func (img Image) Validate(o *Options) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, img.Width, img.Height)
	}
	if !img.Format.Supported() {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, img.Format)
	}
	if img.Width > MaxDimension || img.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidDimensions, img.Width, img.Height, MaxDimension)
	}
	if limit := o.maxPixels(); limit > 0 && img.Width*img.Height > limit {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimensions, img.Width, img.Height, limit)
	}
	if need := img.Format.FrameSize(img.Width, img.Height); len(img.Pix) < need {
		return fmt.Errorf("%w: %dx%d %v needs %d bytes, got %d", ErrInvalidDimensions,
			img.Width, img.Height, img.Format, need, len(img.Pix))
	}
	return nil
}

// EncodeToBuffer encodes img and returns the complete JPEG stream. The
// returned slice belongs to the caller. On failure nothing is returned.
func EncodeToBuffer(img Image, o *Options) ([]byte, error) {
	if err := img.Validate(o); err != nil {
		return nil, err
	}
	s := &bufferSink{}
	if err := encode(img, s, o); err != nil {
		return nil, err
	}
	return s.buf, nil
}

// EncodeToCallback encodes img, passing each chunk of output to fn together
// with arg as soon as it is ready. After a failure fn is not called again
// and the bytes delivered so far do not form a usable stream.
func EncodeToCallback(img Image, fn OutputFunc, arg any, o *Options) error {
	if fn == nil {
		return fmt.Errorf("%w: nil output func", ErrSinkWriteFailed)
	}
	if err := img.Validate(o); err != nil {
		return err
	}
	return encode(img, &callbackSink{fn: fn, arg: arg}, o)
}

// Encode streams img to w. A write error or short write from w aborts the
// encode with ErrSinkWriteFailed.
func Encode(w io.Writer, img Image, o *Options) error {
	if w == nil {
		return fmt.Errorf("%w: nil writer", ErrSinkWriteFailed)
	}
	return EncodeToCallback(img, writerFunc, w, o)
}

// progress is the cursor of one encode call.
type progress struct {
	mcuRow, mcuCol int
	// prevDC holds the previous quantized DC value of Y, Cb and Cr.
	prevDC [nComponent]int32
}

// encode runs the pipeline for a validated image.
func encode(img Image, dst sink, o *Options) error {
	s, err := acquireScratch(o.chunkSize(), o.scratchLimit())
	if err != nil {
		return err
	}
	defer releaseScratch(s)

	scaleQuant(&s.quant, img.Quality)
	for i := range s.huff {
		if err := s.huff[i].init(theHuffmanSpec[i]); err != nil {
			return err
		}
	}

	w := &s.w
	w.reset(dst, s.chunk)
	w.writeMarker(soiMarker)
	w.writeAPP0()
	w.writeDQT(&s.quant)
	w.writeSOF0(img.Width, img.Height)
	w.writeDHT()
	w.writeSOS()

	src := newPixelSource(img)
	var p progress
	mcuRows, mcuCols := (img.Height+15)/16, (img.Width+15)/16
	for p.mcuRow = 0; p.mcuRow < mcuRows; p.mcuRow++ {
		for p.mcuCol = 0; p.mcuCol < mcuCols; p.mcuCol++ {
			src.loadMCU(16*p.mcuCol, 16*p.mcuRow, s)
			for i := range s.y {
				p.prevDC[0] = s.writeBlock(&s.y[i], quantIndexLuminance, p.prevDC[0])
			}
			p.prevDC[1] = s.writeBlock(&s.cb, quantIndexChrominance, p.prevDC[1])
			p.prevDC[2] = s.writeBlock(&s.cr, quantIndexChrominance, p.prevDC[2])
			if w.err != nil {
				return w.err
			}
		}
	}

	w.padToByte()
	w.writeMarker(eoiMarker)
	w.flush()
	return w.err
}
