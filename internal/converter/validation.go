package converter

import (
	"bytes"
	"errors"
	"image"
	"log"

	"github.com/adrium/goheif"
	webp "github.com/chai2010/webp"
)

var (
	// ErrFileTooLarge is returned when the file exceeds the size limit
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrInvalidImageDimensions is returned when image dimensions are invalid
	ErrInvalidImageDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Validation limits
const (
	MaxFileSize       = 20 * 1024 * 1024 // 20MB max file size
	MaxImageWidth     = 20000            // 20K pixels max width
	MaxImageHeight    = 20000            // 20K pixels max height
	MaxImagePixels    = 250_000_000      // 250 megapixels max total pixels
	MinImageDimension = 1
	minHeaderSize     = 12
)

// ValidateFile checks the file size and basic structure before processing
func ValidateFile(data []byte) error {
	// Check file size
	if len(data) > MaxFileSize {
		log.Printf("File too large: %d bytes (max: %d)", len(data), MaxFileSize)
		return ErrFileTooLarge
	}

	if len(data) < minHeaderSize {
		return ErrInvalidImage
	}

	return nil
}

// ValidateSize checks decoded image dimensions are within acceptable limits
func ValidateSize(width, height int) error {
	// Check for zero or negative dimensions
	if width < MinImageDimension || height < MinImageDimension {
		log.Printf("Invalid dimensions: %dx%d", width, height)
		return ErrInvalidImageDimensions
	}

	// Check maximum width/height
	if width > MaxImageWidth || height > MaxImageHeight {
		log.Printf("Dimensions too large: %dx%d (max: %dx%d)", width, height, MaxImageWidth, MaxImageHeight)
		return ErrImageTooLarge
	}

	// Check total pixel count (prevent decompression bomb attacks)
	totalPixels := int64(width) * int64(height)
	if totalPixels > MaxImagePixels {
		log.Printf("Too many pixels: %d (max: %d)", totalPixels, MaxImagePixels)
		return ErrImageTooLarge
	}

	return nil
}

// ValidateImage checks a decoded image against the size limits
func ValidateImage(img image.Image) error {
	if img == nil {
		return ErrInvalidImage
	}
	bounds := img.Bounds()
	return ValidateSize(bounds.Dx(), bounds.Dy())
}

// EstimateOutputSize estimates the JPEG output size based on input dimensions.
// It sizes the pooled output buffer before encoding.
func EstimateOutputSize(width, height, quality int) int64 {
	pixels := int64(width) * int64(height)

	// Use a conservative multiplier based on quality
	var multiplier float64
	switch {
	case quality >= 90:
		multiplier = 2.0
	case quality >= 70:
		multiplier = 1.0
	case quality >= 50:
		multiplier = 0.5
	default:
		multiplier = 0.3
	}

	return int64(float64(pixels) * multiplier)
}

// SafeDecode validates the file, reads the header to reject oversized
// images before decoding them, then decodes and validates the result.
func SafeDecode(data []byte) (image.Image, string, error) {
	if err := ValidateFile(data); err != nil {
		return nil, "", err
	}

	width, height, err := GetImageInfo(data)
	if err != nil {
		return nil, "", err
	}
	if err := ValidateSize(width, height); err != nil {
		return nil, "", err
	}

	img, name, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	if err := ValidateImage(img); err != nil {
		return nil, "", err
	}
	return img, name, nil
}

// GetImageInfo extracts image dimensions from the header without decoding
// the pixel data.
func GetImageInfo(data []byte) (width, height int, err error) {
	var cfg image.Config
	switch {
	case IsHEIFMagic(data):
		cfg, err = goheif.DecodeConfig(bytes.NewReader(data))
	case IsWebPMagic(data):
		cfg, err = webp.DecodeConfig(bytes.NewReader(data))
	default:
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return 0, 0, ErrInvalidImage
	}
	return cfg.Width, cfg.Height, nil
}

// IsHEIFMagic checks if the data has HEIF magic bytes
func IsHEIFMagic(data []byte) bool {
	if len(data) < 12 {
		return false
	}

	// Check for "ftyp" at offset 4 (ISOBMFF format)
	if string(data[4:8]) != "ftyp" {
		return false
	}

	// Known HEIF brands (heic, heim, heis, heix, etc.)
	brand := string(data[8:12])
	return brand[:2] == "he" || brand == "mif1" || brand == "msf1"
}

// IsWebPMagic checks for a RIFF container holding WebP data
func IsWebPMagic(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
