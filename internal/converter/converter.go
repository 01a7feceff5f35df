package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"time"

	"github.com/adrium/goheif"
	webp "github.com/chai2010/webp"
	"github.com/disintegration/gift"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
	"github.com/harliandi/go-img2jpeg/pkg/metrics"
	"github.com/harliandi/go-img2jpeg/pkg/quality"
)

var (
	ErrInvalidImage = errors.New("invalid or unsupported image file")
)

// fallbackQuality is used when adaptive quality search fails.
const fallbackQuality = 85

// Converter decodes compressed images (HEIF, WebP, PNG, GIF, JPEG, BMP,
// TIFF) and re-encodes them with the streaming JPEG encoder.
type Converter struct {
	targetSizeKB int
	opts         *jpeg.Options
}

// New creates a new Converter with the specified target output size in KB.
// opts is passed to every encode; nil uses the encoder defaults.
func New(targetSizeKB int, opts *jpeg.Options) *Converter {
	return &Converter{
		targetSizeKB: targetSizeKB,
		opts:         opts,
	}
}

// WithTargetSize returns a copy of c aiming at a different output size.
func (c *Converter) WithTargetSize(targetSizeKB int) *Converter {
	cc := *c
	cc.targetSizeKB = targetSizeKB
	return &cc
}

// Decode sniffs the container format and decodes data. The returned name
// is "heif", "webp" or the name registered with the image package.
func Decode(data []byte) (image.Image, string, error) {
	switch {
	case IsHEIFMagic(data):
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: heif: %v", ErrInvalidImage, err)
		}
		return img, "heif", nil
	case IsWebPMagic(data):
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: webp: %v", ErrInvalidImage, err)
		}
		return img, "webp", nil
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, name, nil
}

// ConvertBytesScaled converts image bytes, downscaling by scale first when
// it is in (0, 1). A quality of 0 or less selects adaptive quality; one
// above 100 falls back to a fixed default.
func (c *Converter) ConvertBytesScaled(data []byte, scale float64, q int) ([]byte, error) {
	if q > 100 {
		q = fallbackQuality
	}
	start := time.Now()
	mode := "fixed_quality"
	if q <= 0 {
		mode = "adaptive"
	}

	out, err := c.convert(data, scale, q)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordConversion(status, mode, time.Since(start).Seconds(), len(data), len(out))
	return out, err
}

func (c *Converter) convert(data []byte, scale float64, q int) ([]byte, error) {
	img, _, err := SafeDecode(data)
	if err != nil {
		return nil, err
	}

	if scale > 0 && scale < 1.0 {
		img = scaleImage(img, scale)
	}

	raw := Describe(img)
	if q <= 0 {
		// Find optimal quality for target size
		q, err = quality.FindOptimalQuality(raw, c.targetSizeKB, c.opts)
		if err != nil {
			log.Printf("Adaptive quality failed, using %d: %v", fallbackQuality, err)
			q = fallbackQuality
		}
	}
	raw.Quality = q
	return c.EncodeRaw(raw)
}

// EncodeRaw encodes a raw frame into a pooled buffer and returns a copy of
// the JPEG stream.
func (c *Converter) EncodeRaw(raw jpeg.Image) ([]byte, error) {
	buf := NewPooledBuffer(int(EstimateOutputSize(raw.Width, raw.Height, raw.Quality)))

	start := time.Now()
	err := jpeg.Encode(buf, raw, c.opts)
	metrics.RecordEncode("writer", string(jpeg.KindOf(err)), raw.Format.String(),
		raw.Width*raw.Height, buf.Len(), time.Since(start).Seconds())
	if err != nil {
		buf.Release()
		return nil, err
	}
	return buf.ToBytes(), nil
}

// ReadImage reads an encoded image from source and checks its size and
// header before anything is decoded.
func ReadImage(source io.Reader) ([]byte, error) {
	if source == nil {
		return nil, ErrInvalidImage
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(source, MaxFileSize+1)); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if err := ValidateFile(data); err != nil {
		return nil, err
	}
	if _, _, err := GetImageInfo(data); err != nil {
		return nil, err
	}
	return data, nil
}

// scaleImage downscales an image by the given factor (e.g., 0.5 for half
// size) with linear resampling. Results are never smaller than 100 pixels
// on a side unless the source already is.
func scaleImage(img image.Image, scale float64) image.Image {
	if scale >= 1.0 || scale <= 0 {
		return img // No scaling needed
	}

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dstW := int(float64(srcW) * scale)
	dstH := int(float64(srcH) * scale)

	// Ensure minimum dimensions
	dstW = max(dstW, min(srcW, 100))
	dstH = max(dstH, min(srcH, 100))

	g := gift.New(gift.Resize(dstW, dstH, gift.LinearResampling))
	dst := image.NewRGBA(g.Bounds(bounds))
	g.Draw(dst, img)
	return dst
}
