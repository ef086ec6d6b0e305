package assembler

import (
	"context"
	"image"
)

// assembleHorizontal reads the whole crop in one call.
func (a *Assembler) assembleHorizontal(ctx context.Context, crop image.Image) (string, Score) {
	hyp, ok := a.recognize(ctx, crop)
	if !ok {
		return "", Undefined
	}
	return hyp.Text, Defined(hyp.Score)
}
