// Package pipeline runs one frame through detection, region grouping,
// orientation, assembly and validation, and produces the persisted result.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/codes"
	"github.com/MeKo-Tech/codespot/internal/detector"
	"github.com/MeKo-Tech/codespot/internal/orientation"
	"github.com/MeKo-Tech/codespot/internal/recognizer"
	"go.uber.org/zap"
)

// Config holds configuration for the pipeline and its components.
type Config struct {
	// MinDetectionScore drops detections scored below it.
	MinDetectionScore float64
	// ClusterEps is the largest center distance that links two boxes.
	ClusterEps  float64
	CodePattern string
	Orientation orientation.Config
	Assembler   assembler.Config
	// MaxWorkers bounds concurrent region assembly (<= 1 means sequential).
	MaxWorkers int
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		MinDetectionScore: 0.8,
		ClusterEps:        50,
		CodePattern:       codes.DefaultPattern,
		Orientation:       orientation.DefaultConfig(),
		Assembler:         assembler.DefaultConfig(),
		MaxWorkers:        runtime.NumCPU(),
	}
}

// Validate checks the pipeline-level settings and those of every component.
func (c Config) Validate() error {
	var errs []error
	if c.MinDetectionScore < 0 || c.MinDetectionScore > 1 {
		errs = append(errs, fmt.Errorf("min detection score must be in [0,1], got %v", c.MinDetectionScore))
	}
	if c.ClusterEps < 0 {
		errs = append(errs, fmt.Errorf("cluster eps must not be negative, got %v", c.ClusterEps))
	}
	if err := c.Orientation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("orientation: %w", err))
	}
	if err := c.Assembler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("assembler: %w", err))
	}
	if _, err := codes.NewValidator(c.CodePattern); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pipeline turns a frame into validated candidate codes. It holds no
// per-frame state and is safe for concurrent use when its capabilities are.
type Pipeline struct {
	cfg       Config
	detector  detector.Detector
	resolver  *orientation.Resolver
	assembler *assembler.Assembler
	validator *codes.Validator
	logger    *zap.Logger
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg       Config
	det       detector.Detector
	rec       recognizer.Recognizer
	segmenter assembler.Segmenter
	logger    *zap.Logger
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDetector sets the detection capability.
func (b *Builder) WithDetector(d detector.Detector) *Builder {
	b.det = d
	return b
}

// WithRecognizer sets the recognition capability.
func (b *Builder) WithRecognizer(r recognizer.Recognizer) *Builder {
	b.rec = r
	return b
}

// WithSegmenter overrides the character segmenter used for vertical codes.
func (b *Builder) WithSegmenter(s assembler.Segmenter) *Builder {
	b.segmenter = s
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithMaxWorkers bounds concurrent region assembly.
func (b *Builder) WithMaxWorkers(n int) *Builder {
	b.cfg.MaxWorkers = n
	return b
}

// Config returns the current builder config (copy).
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and wires the components.
func (b *Builder) Build() (*Pipeline, error) {
	if b.det == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := orientation.NewResolver(b.cfg.Orientation)
	if err != nil {
		return nil, fmt.Errorf("orientation: %w", err)
	}
	opts := []assembler.Option{assembler.WithLogger(logger.Named("assembler"))}
	if b.segmenter != nil {
		opts = append(opts, assembler.WithSegmenter(b.segmenter))
	}
	asm, err := assembler.New(b.cfg.Assembler, b.rec, opts...)
	if err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	validator, err := codes.NewValidator(b.cfg.CodePattern)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       b.cfg,
		detector:  b.det,
		resolver:  resolver,
		assembler: asm,
		validator: validator,
		logger:    logger,
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }
