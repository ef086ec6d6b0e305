package storage

import (
	"context"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"go.uber.org/zap"
)

// Recorder writes results to disk and mirrors them to PostgreSQL when a
// mirror is configured. Mirror failures are logged, never returned: the JSON
// file is the record of truth.
type Recorder struct {
	files  *FileStore
	mirror *PostgresMirror
	logger *zap.Logger
}

// NewRecorder combines files with an optional mirror (nil disables it).
func NewRecorder(files *FileStore, mirror *PostgresMirror, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{files: files, mirror: mirror, logger: logger}
}

// CopyFrame copies the source frame into the output directory.
func (r *Recorder) CopyFrame(src, stem string) (string, error) {
	return r.files.CopyFrame(src, stem)
}

// Save persists the accepted codes of one frame and returns the JSON path.
func (r *Recorder) Save(ctx context.Context, meta FrameMeta, stem string, codes []assembler.CandidateCode) (string, error) {
	path, err := r.files.WriteResult(stem, pipeline.NewResultRecord(codes))
	if err != nil {
		return "", err
	}
	if r.mirror != nil {
		if merr := r.mirror.SaveCodes(ctx, meta, codes); merr != nil {
			r.logger.Warn("result mirror failed", zap.Error(merr), zap.String("object_id", meta.ObjectID))
		}
	}
	return path, nil
}
