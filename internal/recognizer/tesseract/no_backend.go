//go:build !tesseract

package tesseract

import (
	"context"
	"image"

	"github.com/MeKo-Tech/codespot/internal/recognizer"
)

// Recognizer is unavailable in this build.
type Recognizer struct{}

// New always fails with ErrNoBackend.
func New(_ Options) (*Recognizer, error) { return nil, ErrNoBackend }

// Recognize always fails with ErrNoBackend.
func (r *Recognizer) Recognize(_ context.Context, _ image.Image) (recognizer.Hypothesis, bool, error) {
	return recognizer.Hypothesis{}, false, ErrNoBackend
}

// Close is a no-op.
func (r *Recognizer) Close() error { return nil }
