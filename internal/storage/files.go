// Package storage persists processed frames: the copied frame and its JSON
// result on disk, and optionally the accepted codes in PostgreSQL.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/codespot/internal/pipeline"
)

// FileStore writes into one output directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the output directory.
func (s *FileStore) Dir() string { return s.dir }

// FramePath returns <dir>/<stem>.jpg.
func (s *FileStore) FramePath(stem string) string { return filepath.Join(s.dir, stem+".jpg") }

// ResultPath returns <dir>/<stem>.json.
func (s *FileStore) ResultPath(stem string) string { return filepath.Join(s.dir, stem+".json") }

// CopyFrame copies src to <dir>/<stem>.jpg and returns the destination.
// A missing source wraps os.ErrNotExist.
func (s *FileStore) CopyFrame(src, stem string) (string, error) {
	in, err := os.Open(src) //nolint:gosec // G304: path derived from the event and the configured video root
	if err != nil {
		return "", fmt.Errorf("open frame: %w", err)
	}
	defer func() { _ = in.Close() }()

	dst := s.FramePath(stem)
	err = writeAtomic(dst, func(w io.Writer) error {
		_, cerr := io.Copy(w, in)
		return cerr
	})
	if err != nil {
		return "", fmt.Errorf("copy frame to %s: %w", dst, err)
	}
	return dst, nil
}

// WriteResult writes rec to <dir>/<stem>.json, replacing an earlier result.
func (s *FileStore) WriteResult(stem string, rec pipeline.ResultRecord) (string, error) {
	data, err := rec.ToJSON()
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	dst := s.ResultPath(stem)
	err = writeAtomic(dst, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return "", fmt.Errorf("write result %s: %w", dst, err)
	}
	return dst, nil
}

// writeAtomic writes through a temporary file in the same directory and
// renames it over dst, so readers never see a partial file.
func writeAtomic(dst string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // results are read by other services
		return err
	}
	return os.Rename(tmpName, dst)
}
