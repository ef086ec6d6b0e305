//go:build gocv

package assembler

import (
	"image"

	"gocv.io/x/gocv"
)

// DefaultSegmenter returns the OpenCV contour segmenter.
func DefaultSegmenter(threshold uint8) Segmenter {
	return ContourSegmenter{Threshold: threshold}
}

// ContourSegmenter binarizes the crop with an inverse threshold and returns
// the bounding rectangle of every external contour.
type ContourSegmenter struct {
	Threshold uint8
}

// Segment implements Segmenter. It falls back to ComponentSegmenter when the
// image cannot be converted to a Mat.
func (s ContourSegmenter) Segment(img image.Image) []image.Rectangle {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return ComponentSegmenter(s).Segment(img)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(s.Threshold), 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	off := img.Bounds().Min
	rects := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rects = append(rects, gocv.BoundingRect(contours.At(i)).Add(off))
	}
	return rects
}
