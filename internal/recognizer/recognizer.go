// Package recognizer defines the text-recognition capability boundary.
//
// A Recognizer answers with at most one hypothesis per crop. "No hypothesis"
// is reported through the boolean result and is distinct from a hypothesis
// with zero confidence.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// ErrTimeout is returned when a recognition call exceeds its deadline.
var ErrTimeout = errors.New("recognition timed out")

// Hypothesis is the best reading of one crop.
type Hypothesis struct {
	Text  string
	Score float64
}

// Recognizer reads the text in an image crop.
type Recognizer interface {
	Recognize(ctx context.Context, crop image.Image) (Hypothesis, bool, error)
}

// Func adapts an ordinary function to the Recognizer interface.
type Func func(ctx context.Context, crop image.Image) (Hypothesis, bool, error)

// Recognize calls f(ctx, crop).
func (f Func) Recognize(ctx context.Context, crop image.Image) (Hypothesis, bool, error) {
	return f(ctx, crop)
}

type timeoutRecognizer struct {
	next    Recognizer
	timeout time.Duration
}

// WithTimeout bounds every Recognize call on r by timeout. A non-positive
// timeout returns r unchanged.
func WithTimeout(r Recognizer, timeout time.Duration) Recognizer {
	if timeout <= 0 {
		return r
	}
	return &timeoutRecognizer{next: r, timeout: timeout}
}

type recognizeOutcome struct {
	hyp Hypothesis
	ok  bool
	err error
}

func (t *timeoutRecognizer) Recognize(ctx context.Context, crop image.Image) (Hypothesis, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan recognizeOutcome, 1)
	go func() {
		hyp, ok, err := t.next.Recognize(ctx, crop)
		done <- recognizeOutcome{hyp: hyp, ok: ok, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Hypothesis{}, false, t.timeoutErr()
		}
		return out.hyp, out.ok, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Hypothesis{}, false, t.timeoutErr()
		}
		return Hypothesis{}, false, ctx.Err()
	}
}

func (t *timeoutRecognizer) timeoutErr() error {
	return fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
}

type normalizingRecognizer struct {
	next Recognizer
}

// WithWidthFolding maps full-width and half-width forms in recognized text to
// their canonical narrow equivalents and strips whitespace. A hypothesis that
// becomes empty is reported as no hypothesis.
func WithWidthFolding(r Recognizer) Recognizer {
	return &normalizingRecognizer{next: r}
}

func (n *normalizingRecognizer) Recognize(ctx context.Context, crop image.Image) (Hypothesis, bool, error) {
	hyp, ok, err := n.next.Recognize(ctx, crop)
	if err != nil || !ok {
		return hyp, ok, err
	}
	hyp.Text = NormalizeText(hyp.Text)
	if hyp.Text == "" {
		return Hypothesis{}, false, nil
	}
	return hyp, true, nil
}

// NormalizeText folds character widths and removes all whitespace.
func NormalizeText(s string) string {
	folded := width.Fold.String(s)
	return strings.Join(strings.Fields(folded), "")
}
