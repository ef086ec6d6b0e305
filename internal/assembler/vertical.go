package assembler

import (
	"context"
	"image"
	"sort"
	"strings"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"go.uber.org/zap"
)

// charReading is one recognized character with its position in the crop.
type charReading struct {
	y, x  int
	text  string
	score float64
}

// assembleVertical segments the crop into characters, reads each one and
// joins them in top-to-bottom order.
func (a *Assembler) assembleVertical(ctx context.Context, crop image.Image) (string, Score) {
	rects := a.characterBoxes(crop)
	if len(rects) == 0 {
		return "", Undefined
	}

	margin := float64(a.cfg.Segmentation.Margin)
	readings := make([]charReading, 0, len(rects))
	for _, r := range rects {
		sub := utils.CropPadded(crop, utils.BoxFromRect(r), margin)
		hyp, ok := a.recognize(ctx, sub)
		if !ok {
			continue
		}
		readings = append(readings, charReading{y: r.Min.Y, x: r.Min.X, text: hyp.Text, score: hyp.Score})
	}

	text, score := joinReadings(readings)
	a.logger.Debug("vertical region assembled",
		zap.Int("contours", len(rects)), zap.Int("characters", len(readings)), zap.String("text", text))
	return text, score
}

// characterBoxes returns the segmented blobs whose size lies within the
// configured bounds, inclusive.
func (a *Assembler) characterBoxes(crop image.Image) []image.Rectangle {
	s := a.cfg.Segmentation
	var kept []image.Rectangle
	for _, r := range a.segmenter.Segment(crop) {
		w, h := r.Dx(), r.Dy()
		if w < s.CharMinWidth || w > s.CharMaxWidth || h < s.CharMinHeight || h > s.CharMaxHeight {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// joinReadings sorts readings by y ascending (x breaks ties), concatenates
// their text and averages their scores.
func joinReadings(readings []charReading) (string, Score) {
	if len(readings) == 0 {
		return "", Undefined
	}
	sort.SliceStable(readings, func(i, j int) bool {
		if readings[i].y != readings[j].y {
			return readings[i].y < readings[j].y
		}
		return readings[i].x < readings[j].x
	})

	var sb strings.Builder
	scores := make([]float64, len(readings))
	for i, r := range readings {
		sb.WriteString(r.text)
		scores[i] = r.score
	}
	return sb.String(), MeanScore(scores)
}
