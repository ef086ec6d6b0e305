// Package assembler turns one merged region into a single code string.
//
// Horizontal regions are read with one recognition call on the whole padded
// crop. Vertical regions are split into characters by contour segmentation,
// each character is read on its own, and the readings are joined top to
// bottom.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/codespot/internal/orientation"
	"github.com/MeKo-Tech/codespot/internal/recognizer"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"go.uber.org/zap"
)

// CandidateCode is the assembled reading of one region.
type CandidateCode struct {
	Text        string
	Score       Score
	Box         utils.Box
	Orientation orientation.Orientation
	// Matches holds the validator's matched substrings once validated.
	Matches []string
}

// SegmentationConfig bounds the character blobs kept in vertical regions.
// Bounds are inclusive.
type SegmentationConfig struct {
	Threshold     uint8
	Margin        int
	CharMinWidth  int
	CharMaxWidth  int
	CharMinHeight int
	CharMaxHeight int
}

// Config controls cropping and segmentation.
type Config struct {
	// Padding grows the merged region before cropping.
	Padding      float64
	Segmentation SegmentationConfig
}

// DefaultConfig returns the defaults used at the gate cameras.
func DefaultConfig() Config {
	return Config{
		Padding: 5,
		Segmentation: SegmentationConfig{
			Threshold:     128,
			Margin:        6,
			CharMinWidth:  4,
			CharMaxWidth:  60,
			CharMinHeight: 8,
			CharMaxHeight: 60,
		},
	}
}

// Validate checks the segmentation bounds.
func (c Config) Validate() error {
	s := c.Segmentation
	if c.Padding < 0 {
		return fmt.Errorf("padding must not be negative: %v", c.Padding)
	}
	if s.Margin < 0 {
		return fmt.Errorf("character margin must not be negative: %d", s.Margin)
	}
	if s.CharMinWidth < 0 || s.CharMinWidth > s.CharMaxWidth {
		return fmt.Errorf("invalid character width bounds [%d, %d]", s.CharMinWidth, s.CharMaxWidth)
	}
	if s.CharMinHeight < 0 || s.CharMinHeight > s.CharMaxHeight {
		return fmt.Errorf("invalid character height bounds [%d, %d]", s.CharMinHeight, s.CharMaxHeight)
	}
	return nil
}

// Assembler produces candidate codes from regions of a frame.
type Assembler struct {
	cfg       Config
	rec       recognizer.Recognizer
	segmenter Segmenter
	logger    *zap.Logger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithSegmenter replaces the build's default character segmenter.
func WithSegmenter(s Segmenter) Option {
	return func(a *Assembler) { a.segmenter = s }
}

// WithLogger sets the logger used for recognition failures.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// New creates an Assembler reading crops with rec.
func New(cfg Config, rec recognizer.Recognizer, opts ...Option) (*Assembler, error) {
	if rec == nil {
		return nil, errors.New("assembler requires a recognizer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Assembler{cfg: cfg, rec: rec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.segmenter == nil {
		a.segmenter = DefaultSegmenter(cfg.Segmentation.Threshold)
	}
	return a, nil
}

// Assemble reads the region box of img using the strategy for o. Rejected
// regions and regions with nothing recognized yield empty text and an
// Undefined score.
func (a *Assembler) Assemble(ctx context.Context, img image.Image, box utils.Box, o orientation.Orientation) CandidateCode {
	code := CandidateCode{Box: box, Orientation: o, Score: Undefined}
	crop := utils.CropPadded(img, box, a.cfg.Padding)
	if crop.Bounds().Empty() {
		return code
	}

	switch o {
	case orientation.Horizontal:
		code.Text, code.Score = a.assembleHorizontal(ctx, crop)
	case orientation.Vertical:
		code.Text, code.Score = a.assembleVertical(ctx, crop)
	}
	return code
}

// recognize wraps the capability call; failures are logged and count as no hypothesis.
func (a *Assembler) recognize(ctx context.Context, crop image.Image) (recognizer.Hypothesis, bool) {
	hyp, ok, err := a.rec.Recognize(ctx, crop)
	if err != nil {
		a.logger.Warn("recognition failed", zap.Error(err),
			zap.Int("crop_width", crop.Bounds().Dx()), zap.Int("crop_height", crop.Bounds().Dy()))
		return recognizer.Hypothesis{}, false
	}
	return hyp, ok
}
