package recognizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures a remote recognition service.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// HTTPRecognizer calls a recognition service that accepts a base64 PNG crop
// and answers with a ranked list of predictions.
type HTTPRecognizer struct {
	client *resty.Client
	url    string
}

type recognizeRequest struct {
	Image string `json:"image"`
}

type prediction struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type recognizeResponse struct {
	Predictions []prediction `json:"predictions"`
}

// NewHTTPRecognizer creates a recognizer backed by the service at cfg.URL.
func NewHTTPRecognizer(cfg HTTPConfig) (*HTTPRecognizer, error) {
	if cfg.URL == "" {
		return nil, errors.New("recognition url is required")
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &HTTPRecognizer{client: client, url: cfg.URL}, nil
}

// Recognize sends crop to the service and returns its first prediction.
// An empty prediction list means no hypothesis.
func (r *HTTPRecognizer) Recognize(ctx context.Context, crop image.Image) (Hypothesis, bool, error) {
	data, err := utils.EncodePNG(crop)
	if err != nil {
		return Hypothesis{}, false, err
	}

	var body recognizeResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(recognizeRequest{Image: base64.StdEncoding.EncodeToString(data)}).
		SetResult(&body).
		ForceContentType("application/json").
		Post(r.url)
	if err != nil {
		return Hypothesis{}, false, fmt.Errorf("recognition request: %w", err)
	}
	if resp.IsError() {
		return Hypothesis{}, false, fmt.Errorf("recognition service returned %s: %s", resp.Status(), resp.String())
	}
	if len(body.Predictions) == 0 {
		return Hypothesis{}, false, nil
	}
	best := body.Predictions[0]
	return Hypothesis{Text: best.Text, Score: best.Score}, true, nil
}
