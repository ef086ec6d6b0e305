package index

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config configures the index client.
type Config struct {
	// URL is the cluster base URL; an empty URL disables indexing.
	URL                string
	Pattern            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// Delay is waited before each update so the event document is searchable.
	Delay        time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// DeadLetterDir receives updates that exhausted their retries; empty disables it.
	DeadLetterDir string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Pattern:      "event_*",
		Timeout:      10 * time.Second,
		Delay:        time.Second,
		RetryCount:   3,
		RetryWait:    500 * time.Millisecond,
		RetryMaxWait: 10 * time.Second,
	}
}

// Validate checks the settings needed for an enabled client.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("index url is required")
	}
	if c.Pattern == "" {
		return errors.New("index pattern is required")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative: %d", c.RetryCount)
	}
	if c.RetryMaxWait < c.RetryWait {
		return fmt.Errorf("retry max wait %s is below retry wait %s", c.RetryMaxWait, c.RetryWait)
	}
	return nil
}

// UpdateResponse is the subset of the _update_by_query answer we act on.
type UpdateResponse struct {
	Updated          int               `json:"updated"`
	VersionConflicts int               `json:"version_conflicts"`
	Failures         []json.RawMessage `json:"failures"`
}

// ErrUpdateRejected marks a non-retryable answer from the cluster.
var ErrUpdateRejected = errors.New("index update rejected")

// Client updates event documents through _update_by_query.
type Client struct {
	cfg         Config
	http        *resty.Client
	deadLetters *DeadLetterStore
	logger      *zap.Logger
}

// NewClient validates cfg and prepares the HTTP client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(retryable)
	if cfg.Username != "" {
		hc.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.InsecureSkipVerify {
		hc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in for self-signed lab clusters
	}

	c := &Client{cfg: cfg, http: hc, logger: logger}
	if cfg.DeadLetterDir != "" {
		store, err := NewDeadLetterStore(cfg.DeadLetterDir)
		if err != nil {
			return nil, err
		}
		c.deadLetters = store
	}
	return c, nil
}

// retryable retries transport errors, throttling and server errors.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// DeadLetters returns the dead-letter store, or nil when disabled.
func (c *Client) DeadLetters() *DeadLetterStore { return c.deadLetters }

// Register waits the configured delay and then sets the registration of every
// document of objectID. A final failure, including cancellation during the
// delay, is written as a dead letter before the error is returned.
func (c *Client) Register(ctx context.Context, objectID, code string, box utils.Box) error {
	reg := NewRegistration(code, box)
	if err := sleepCtx(ctx, c.cfg.Delay); err != nil {
		indexUpdates.WithLabelValues("cancelled").Inc()
		c.logger.Warn("index update cancelled before it was sent",
			zap.Error(err), zap.String("object_id", objectID), zap.String("image_position", reg.ImagePosition))
		c.keep(objectID, reg, err, 0)
		return err
	}

	resp, err := c.UpdateRegistration(ctx, objectID, reg)
	if err != nil {
		indexUpdates.WithLabelValues("failed").Inc()
		c.logger.Error("index update failed",
			zap.Error(err), zap.String("object_id", objectID), zap.String("image_position", reg.ImagePosition))
		c.keep(objectID, reg, err, c.cfg.RetryCount+1)
		return err
	}

	indexUpdates.WithLabelValues("ok").Inc()
	c.logger.Info("index updated",
		zap.String("object_id", objectID), zap.Int("updated", resp.Updated),
		zap.Int("version_conflicts", resp.VersionConflicts))
	for _, f := range resp.Failures {
		c.logger.Warn("index update failure", zap.String("object_id", objectID), zap.ByteString("failure", f))
	}
	return nil
}

// keep writes a dead letter for reg when a store is configured.
func (c *Client) keep(objectID string, reg Registration, cause error, attempts int) {
	if c.deadLetters == nil {
		return
	}
	path, err := c.deadLetters.Write(NewDeadLetter(objectID, reg, cause, attempts))
	if err != nil {
		c.logger.Error("dead letter not written", zap.Error(err), zap.String("object_id", objectID))
		return
	}
	c.logger.Warn("index update kept for replay", zap.String("dead_letter", path))
}

// UpdateRegistration issues one _update_by_query call (with transport-level
// retries). Version conflicts are tolerated.
func (c *Client) UpdateRegistration(ctx context.Context, objectID string, reg Registration) (UpdateResponse, error) {
	var out UpdateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetRawPathParam("pattern", c.cfg.Pattern).
		SetQueryParam("conflicts", "proceed").
		SetBody(newUpdateByQuery(objectID, reg)).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/{pattern}/_update_by_query")
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("update_by_query: %w", err)
	}
	if resp.IsError() {
		return UpdateResponse{}, fmt.Errorf("%w: %s: %s", ErrUpdateRejected, resp.Status(), strings.TrimSpace(resp.String()))
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
