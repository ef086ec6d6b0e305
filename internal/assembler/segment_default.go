//go:build !gocv

package assembler

// DefaultSegmenter returns the pure-Go component segmenter. Build with
// -tags=gocv to use OpenCV contours instead.
func DefaultSegmenter(threshold uint8) Segmenter {
	return ComponentSegmenter{Threshold: threshold}
}
