package quality

import (
	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
)

const (
	minQuality    = 10
	maxQuality    = 100
	maxIterations = 6
	startQuality  = 85
)

// FindOptimalQuality finds the JPEG quality setting that produces
// an output closest to the target size in KB.
// Uses binary search approach with maxIterations to balance speed and accuracy.
// Each trial encode streams the encoder output into a byte counter, so no
// encoded data is kept.
func FindOptimalQuality(img jpeg.Image, targetSizeKB int, o *jpeg.Options) (int, error) {
	targetBytes := targetSizeKB * 1024

	low, high := minQuality, maxQuality
	bestQuality := startQuality
	bestSizeDiff := -1

	for i := 0; i < maxIterations; i++ {
		mid := (low + high) / 2
		size, err := EncodeSize(img, mid, o)
		if err != nil {
			return startQuality, err
		}

		sizeDiff := abs(size - targetBytes)

		// Track best quality found
		if bestSizeDiff == -1 || sizeDiff < bestSizeDiff {
			bestSizeDiff = sizeDiff
			bestQuality = mid
		}

		// Early exit if we're close enough (within 5% of target)
		if sizeDiff < targetBytes/20 {
			break
		}

		// Binary search adjustment
		if size > targetBytes {
			high = mid - 1
		} else {
			low = mid + 1
		}

		// Prevent infinite loop
		if low > high {
			break
		}
	}

	return bestQuality, nil
}

// EncodeSize returns the size in bytes of encoding img at the given quality.
func EncodeSize(img jpeg.Image, quality int, o *jpeg.Options) (int, error) {
	img.Quality = quality
	var n int
	err := jpeg.EncodeToCallback(img, countBytes, &n, o)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func countBytes(arg any, index int, data []byte) int {
	*arg.(*int) += len(data)
	return len(data)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
