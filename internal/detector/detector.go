// Package detector defines the text-detection capability boundary and the
// post-processing that reduces raw detections to bounding boxes.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/codespot/internal/utils"
)

// ErrTimeout is returned when a detection call exceeds its deadline.
var ErrTimeout = errors.New("detection timed out")

// Polygon is the ordered outline of a detected text region.
type Polygon []utils.Point

// Detection is one raw region reported by a detection capability.
type Detection struct {
	Polygon Polygon
	Score   float64
}

// Detector finds text regions in a frame. An empty result is valid and not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Func adapts an ordinary function to the Detector interface.
type Func func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f(ctx, img).
func (f Func) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

type timeoutDetector struct {
	next    Detector
	timeout time.Duration
}

// WithTimeout bounds every Detect call on d by timeout. The call returns
// ErrTimeout once the deadline passes, even if the backend ignores ctx.
// A non-positive timeout returns d unchanged.
func WithTimeout(d Detector, timeout time.Duration) Detector {
	if timeout <= 0 {
		return d
	}
	return &timeoutDetector{next: d, timeout: timeout}
}

type detectOutcome struct {
	dets []Detection
	err  error
}

func (t *timeoutDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan detectOutcome, 1)
	go func() {
		dets, err := t.next.Detect(ctx, img)
		done <- detectOutcome{dets: dets, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, t.timeoutErr()
		}
		return out.dets, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, t.timeoutErr()
		}
		return nil, ctx.Err()
	}
}

func (t *timeoutDetector) timeoutErr() error {
	return fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
}
