package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadLetter is an index update that exhausted its retries.
type DeadLetter struct {
	ID           string       `json:"id"`
	ObjectID     string       `json:"object_id"`
	Registration Registration `json:"registration"`
	Error        string       `json:"error"`
	Attempts     int          `json:"attempts"`
	FailedAt     time.Time    `json:"failed_at"`
}

// NewDeadLetter records a failed update.
func NewDeadLetter(objectID string, reg Registration, err error, attempts int) DeadLetter {
	return DeadLetter{
		ID:           uuid.NewString(),
		ObjectID:     objectID,
		Registration: reg,
		Error:        err.Error(),
		Attempts:     attempts,
		FailedAt:     time.Now().UTC(),
	}
}

// DeadLetterStore keeps one JSON file per dead letter in a directory.
type DeadLetterStore struct {
	dir string
}

// DeadLetterEntry is a stored dead letter and its file.
type DeadLetterEntry struct {
	Path   string
	Letter DeadLetter
}

const deadLetterExt = ".deadletter.json"

// NewDeadLetterStore creates dir if needed.
func NewDeadLetterStore(dir string) (*DeadLetterStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create dead letter directory: %w", err)
	}
	return &DeadLetterStore{dir: dir}, nil
}

// Write stores dl and returns its path.
func (s *DeadLetterStore) Write(dl DeadLetter) (string, error) {
	data, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		return "", err
	}
	name := dl.FailedAt.Format("20060102T150405") + "_" + dl.ID + deadLetterExt
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write dead letter: %w", err)
	}
	return path, nil
}

// List returns the stored dead letters, oldest first. Unreadable files are
// reported in the joined error but do not hide the readable ones.
func (s *DeadLetterStore) List() ([]DeadLetterEntry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read dead letter directory: %w", err)
	}
	var (
		out  []DeadLetterEntry
		errs []error
	)
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), deadLetterExt) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path) //nolint:gosec // G304: files inside the configured dead letter directory
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var dl DeadLetter
		if err := json.Unmarshal(data, &dl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		out = append(out, DeadLetterEntry{Path: path, Letter: dl})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Letter.FailedAt.Before(out[j].Letter.FailedAt) })
	return out, errors.Join(errs...)
}

// Remove deletes a replayed dead letter.
func (s *DeadLetterStore) Remove(entry DeadLetterEntry) error {
	return os.Remove(entry.Path)
}

// ReplayReport counts the outcome of a replay run.
type ReplayReport struct {
	Replayed int
	Failed   int
}

// Replay re-sends every stored dead letter through c and removes the ones
// that succeed. Failures stay on disk for the next run.
func (c *Client) Replay(ctx context.Context) (ReplayReport, error) {
	var rep ReplayReport
	if c.deadLetters == nil {
		return rep, errors.New("dead letter directory is not configured")
	}
	entries, listErr := c.deadLetters.List()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if _, err := c.UpdateRegistration(ctx, e.Letter.ObjectID, e.Letter.Registration); err != nil {
			rep.Failed++
			c.logger.Warn("dead letter replay failed", zap.Error(err), zap.String("dead_letter", e.Path))
			continue
		}
		if err := c.deadLetters.Remove(e); err != nil {
			return rep, err
		}
		rep.Replayed++
		c.logger.Info("dead letter replayed", zap.String("dead_letter", e.Path))
	}
	return rep, listErr
}
