package events

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/storage"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPanic marks an event whose processing panicked.
var ErrPanic = errors.New("event handler panicked")

// CodeFinder runs the code pipeline on a frame.
type CodeFinder interface {
	FindCodes(ctx context.Context, img image.Image) pipeline.Outcome
}

// Store persists frames and results.
type Store interface {
	CopyFrame(src, stem string) (string, error)
	Save(ctx context.Context, meta storage.FrameMeta, stem string, codes []assembler.CandidateCode) (string, error)
}

// Indexer publishes the primary code of a frame.
type Indexer interface {
	Register(ctx context.Context, objectID, code string, box utils.Box) error
}

// Report describes how far one event got and what it produced. Stage is the
// last stage reached, or the stage that failed when Handle returns an Error.
type Report struct {
	RunID      string
	Event      FrameEvent
	Stage      Stage
	SourcePath string
	FramePath  string
	ResultPath string
	Record     pipeline.ResultRecord
	Primary    *assembler.CandidateCode
	Indexed    bool
}

// Handler processes frame events one at a time.
type Handler struct {
	videoRoot string
	finder    CodeFinder
	store     Store
	indexer   Indexer
	logger    *zap.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIndexer enables the search index update.
func WithIndexer(ix Indexer) HandlerOption {
	return func(h *Handler) { h.indexer = ix }
}

// WithLogger sets the handler's logger.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler wires a handler reading frames below videoRoot.
func NewHandler(videoRoot string, finder CodeFinder, store Store, opts ...HandlerOption) (*Handler, error) {
	if videoRoot == "" {
		return nil, errors.New("video root is required")
	}
	if finder == nil || store == nil {
		return nil, errors.New("handler requires a code finder and a store")
	}
	h := &Handler{videoRoot: videoRoot, finder: finder, store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one broker payload. It returns an error only for events
// that produced no result: malformed payloads, missing or unreadable frames,
// failed persistence and panics. Each of those is also logged with the
// event identity. Detection, recognition and index failures degrade the
// result instead.
func (h *Handler) Handle(ctx context.Context, payload []byte) (rep Report, err error) {
	start := time.Now()
	rep.RunID = uuid.NewString()
	log := h.logger.With(zap.String("run_id", rep.RunID))

	defer func() {
		if r := recover(); r != nil {
			e := newError(rep.Stage, rep.Event, fmt.Errorf("%w: %v", ErrPanic, r))
			log.Error("event processing panicked", zap.Object("event", e), zap.Any("panic", r), zap.Stack("stack"))
			eventsTotal.WithLabelValues("panic").Inc()
			err = e
		}
		eventDuration.Observe(time.Since(start).Seconds())
	}()

	ev, err := ParseFrameEvent(payload)
	if err != nil {
		log.Error("dropping malformed event", zap.Error(err), zap.ByteString("payload", clip(payload, 512)))
		eventsTotal.WithLabelValues("malformed").Inc()
		return rep, err
	}
	rep.Event = ev
	log = log.With(eventFields(ev)...)
	log.Info("event received")

	img, err := h.locate(&rep)
	if err != nil {
		e := fail(&rep, StageImageLocated, err)
		outcome := "failed"
		if errors.Is(err, ErrFrameNotFound) {
			outcome = "missing_frame"
		}
		log.Error("frame not available", zap.Object("event", e), zap.Error(err))
		eventsTotal.WithLabelValues(outcome).Inc()
		return rep, e
	}
	reach(&rep, log, StageImageLocated, zap.String("frame_path", rep.FramePath))

	out := h.finder.FindCodes(ctx, img)
	reach(&rep, log, StageDetected, zap.Int("detections", out.Detections), zap.Bool("degraded", out.DetectErr != nil))
	reach(&rep, log, StageClustered, zap.Int("kept", out.Kept), zap.Int("regions", len(out.Regions)))
	reach(&rep, log, StageAssembled, zap.Int("candidates", len(out.Candidates)))
	reach(&rep, log, StageValidated, zap.Int("codes", len(out.Codes)))
	rep.Record = out.Record()

	meta := storage.FrameMeta{
		ObjectID:  ev.ObjectID,
		CameraID:  ev.CameraID,
		EventTime: ev.EventTime,
		FramePath: rep.FramePath,
	}
	rep.ResultPath, err = h.store.Save(ctx, meta, ev.DestinationStem(), out.Codes)
	if err != nil {
		e := fail(&rep, StagePersisted, err)
		log.Error("result not persisted", zap.Object("event", e), zap.Error(err))
		eventsTotal.WithLabelValues("failed").Inc()
		return rep, e
	}
	reach(&rep, log, StagePersisted, zap.String("result_path", rep.ResultPath))

	if primary, ok := pipeline.SelectPrimary(out.Codes); ok {
		rep.Primary = &primary
		rep.Indexed = h.index(ctx, log, ev, primary)
	}
	reach(&rep, log, StageIndexed, zap.Bool("indexed", rep.Indexed))

	rep.Stage = StageDone
	log.Info("event done",
		zap.String("result_path", rep.ResultPath),
		zap.Int("codes", len(rep.Record.Result)),
		zap.Bool("indexed", rep.Indexed),
		zap.Bool("detection_degraded", out.DetectErr != nil),
		zap.Duration("elapsed", time.Since(start)),
		out.Timings.Field())
	eventsTotal.WithLabelValues("done").Inc()
	return rep, nil
}

// locate copies the source frame into the output directory and decodes the copy.
func (h *Handler) locate(rep *Report) (image.Image, error) {
	rep.SourcePath = rep.Event.SourcePath(h.videoRoot)
	framePath, err := h.store.CopyFrame(rep.SourcePath, rep.Event.DestinationStem())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, rep.SourcePath)
		}
		return nil, err
	}
	rep.FramePath = framePath

	img, _, err := utils.LoadImage(framePath)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", framePath, err)
	}
	return img, nil
}

// index publishes the primary code; failures are logged and reported as false.
func (h *Handler) index(ctx context.Context, log *zap.Logger, ev FrameEvent, primary assembler.CandidateCode) bool {
	if h.indexer == nil {
		return false
	}
	if err := h.indexer.Register(ctx, ev.ObjectID, primary.Text, primary.Box); err != nil {
		log.Warn("index update not applied, result kept on disk", zap.Error(err), zap.String("code", primary.Text))
		return false
	}
	return true
}

// fail records s as the stage the event stopped at and returns the matching Error.
func fail(rep *Report, s Stage, err error) *Error {
	rep.Stage = s
	return newError(s, rep.Event, err)
}

func reach(rep *Report, log *zap.Logger, s Stage, fields ...zap.Field) {
	rep.Stage = s
	log.Debug("stage reached", append([]zap.Field{zap.Stringer("stage", s)}, fields...)...)
}

func clip(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
