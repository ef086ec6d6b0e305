package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/codespot/internal/config"
	"github.com/MeKo-Tech/codespot/internal/detector"
	"github.com/MeKo-Tech/codespot/internal/events"
	"github.com/MeKo-Tech/codespot/internal/index"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/recognizer"
	"github.com/MeKo-Tech/codespot/internal/recognizer/tesseract"
	"github.com/MeKo-Tech/codespot/internal/storage"
	"go.uber.org/zap"
)

// services holds everything an event needs, built once per process.
type services struct {
	pipeline *pipeline.Pipeline
	handler  *events.Handler
	index    *index.Client
	mirror   *storage.PostgresMirror
	closers  []func() error
}

// Close releases the services in reverse construction order.
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// newRecognizer builds the configured recognition backend wrapped in its
// timeout, plus a closer for backends holding native resources.
func newRecognizer(cfg *config.Config) (recognizer.Recognizer, func() error, error) {
	var (
		rec    recognizer.Recognizer
		closer = func() error { return nil }
	)
	switch cfg.Recognition.Backend {
	case config.RecognitionTesseract:
		t, err := tesseract.New(cfg.ToTesseractOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("create tesseract recognizer: %w", err)
		}
		rec, closer = t, t.Close
	default:
		h, err := recognizer.NewHTTPRecognizer(recognizer.HTTPConfig{
			URL:     cfg.Recognition.URL,
			Timeout: cfg.Recognition.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		rec = h
	}
	if cfg.Recognition.FoldWidth {
		rec = recognizer.WithWidthFolding(rec)
	}
	return recognizer.WithTimeout(rec, cfg.Recognition.Timeout), closer, nil
}

// newPipeline wires detection, recognition and segmentation from cfg.
func newPipeline(cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, func() error, error) {
	det, err := detector.NewHTTPDetector(detector.HTTPConfig{
		URL:     cfg.Detection.URL,
		Timeout: cfg.Detection.Timeout,
		Logger:  log.Named("detector"),
	})
	if err != nil {
		return nil, nil, err
	}
	rec, closeRec, err := newRecognizer(cfg)
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithDetector(detector.WithTimeout(det, cfg.Detection.Timeout)).
		WithRecognizer(rec).
		WithLogger(log).
		Build()
	if err != nil {
		_ = closeRec()
		return nil, nil, err
	}
	return p, closeRec, nil
}

// newServices builds the full event path: pipeline, storage, index client
// and handler.
func newServices(ctx context.Context, cfg *config.Config, log *zap.Logger) (*services, error) {
	s := &services{}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	p, closeRec, err := newPipeline(cfg, log)
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	s.closers = append(s.closers, closeRec)

	files, err := storage.NewFileStore(cfg.Paths.Output)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.PostgresURL != "" {
		s.mirror, err = storage.OpenPostgres(ctx, cfg.ToPostgresConfig())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.mirror.Close)
	}

	opts := []events.HandlerOption{events.WithLogger(log)}
	if cfg.Index.URL != "" {
		s.index, err = index.NewClient(cfg.ToIndexConfig(), log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, events.WithIndexer(s.index))
	} else {
		log.Info("search index disabled, results are only written to disk")
	}

	s.handler, err = events.NewHandler(cfg.Paths.VideoRoot, p, storage.NewRecorder(files, s.mirror, log), opts...)
	if err != nil {
		return nil, err
	}
	ok = true
	return s, nil
}
