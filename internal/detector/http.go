package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPConfig configures a remote detection service.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
	// Logger receives warnings about polygons that are skipped. Nil discards them.
	Logger *zap.Logger
}

// HTTPDetector calls a detection service that accepts a base64 PNG frame and
// answers with flat polygons and their scores.
type HTTPDetector struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Polygons [][]float64 `json:"polygons"`
	Scores   []float64   `json:"scores"`
}

// NewHTTPDetector creates a detector backed by the service at cfg.URL.
func NewHTTPDetector(cfg HTTPConfig) (*HTTPDetector, error) {
	if cfg.URL == "" {
		return nil, errors.New("detection url is required")
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDetector{client: client, url: cfg.URL, logger: logger}, nil
}

// Detect sends img to the service and decodes its polygons. Polygons with
// fewer than three points or an odd coordinate count are skipped.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var body detectResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(detectRequest{Image: base64.StdEncoding.EncodeToString(data)}).
		SetResult(&body).
		ForceContentType("application/json").
		Post(d.url)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detection service returned %s: %s", resp.Status(), resp.String())
	}
	if len(body.Polygons) != len(body.Scores) {
		return nil, fmt.Errorf("detection response has %d polygons but %d scores", len(body.Polygons), len(body.Scores))
	}

	dets := make([]Detection, 0, len(body.Polygons))
	for i, flat := range body.Polygons {
		poly, err := PolygonFromFlat(flat)
		if err != nil {
			d.logger.Warn("skipping polygon", zap.Int("index", i), zap.Float64("score", body.Scores[i]), zap.Error(err))
			continue
		}
		dets = append(dets, Detection{Polygon: poly, Score: body.Scores[i]})
	}
	return dets, nil
}
