// Package batch reads codes from many local image files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/utils"
)

// ErrUnsupportedFormat marks files that are not a supported image type.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Finder reads the codes of one image.
type Finder interface {
	FindCodes(ctx context.Context, img image.Image) pipeline.Outcome
}

// Item is the outcome for one file. Err is set when the file could not be
// read; DetectErr when detection failed and Record is therefore empty.
type Item struct {
	Path      string
	Record    pipeline.ResultRecord
	Outcome   pipeline.Outcome
	Err       error
	DetectErr error
}

// Result collects the items of one run in input order.
type Result struct {
	Items  []Item
	Failed int
}

// Process runs f over paths one file at a time; regions within a file are
// already read in parallel by the pipeline. onItem, when set, sees each item
// as soon as it is done. A cancelled ctx stops before the next file.
func Process(ctx context.Context, f Finder, paths []string, onItem func(Item) error) (Result, error) {
	res := Result{Items: make([]Item, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		it := processOne(ctx, f, path)
		if it.Err != nil {
			res.Failed++
		}
		res.Items = append(res.Items, it)
		if onItem != nil {
			if err := onItem(it); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func processOne(ctx context.Context, f Finder, path string) Item {
	it := Item{Path: path, Record: pipeline.NewResultRecord(nil)}
	if !utils.IsSupportedImage(path) {
		it.Err = ErrUnsupportedFormat
		return it
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		it.Err = fmt.Errorf("load %s: %w", path, err)
		return it
	}
	it.Outcome = f.FindCodes(ctx, img)
	it.DetectErr = it.Outcome.DetectErr
	it.Record = it.Outcome.Record()
	return it
}
