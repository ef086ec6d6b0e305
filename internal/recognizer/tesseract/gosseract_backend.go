//go:build tesseract

package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/MeKo-Tech/codespot/internal/models"
	"github.com/MeKo-Tech/codespot/internal/recognizer"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer reads crops with a single Tesseract client. The client is not
// safe for concurrent use, so calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New configures a Tesseract client from opts.
func New(opts Options) (*Recognizer, error) {
	dir := models.GetTessdataDir(opts.TessdataDir)
	if err := models.ValidateLanguages(dir, opts.Language); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if dir != "" {
		if err := client.SetTessdataPrefix(dir); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set tessdata directory: %w", err)
		}
	}

	if err := client.SetLanguage(opts.Language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	// Codes are not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Recognizer{client: client}, nil
}

// Recognize returns the words Tesseract finds in crop joined together, scored
// by their mean confidence scaled to [0,1].
func (r *Recognizer) Recognize(ctx context.Context, crop image.Image) (recognizer.Hypothesis, bool, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Hypothesis{}, false, err
	}
	data, err := utils.EncodePNG(crop)
	if err != nil {
		return recognizer.Hypothesis{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(data); err != nil {
		return recognizer.Hypothesis{}, false, fmt.Errorf("tesseract set image: %w", err)
	}
	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return recognizer.Hypothesis{}, false, fmt.Errorf("tesseract recognize: %w", err)
	}

	var sb strings.Builder
	var sum float64
	var n int
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		sb.WriteString(word)
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return recognizer.Hypothesis{}, false, nil
	}
	return recognizer.Hypothesis{Text: sb.String(), Score: sum / float64(n) / 100}, true, nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
