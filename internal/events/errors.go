package events

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrMalformedEvent marks a payload that cannot be turned into a FrameEvent.
	ErrMalformedEvent = errors.New("malformed frame event")
	// ErrFrameNotFound marks an event whose source frame does not exist.
	ErrFrameNotFound = errors.New("source frame not found")
)

// Error is a terminal failure of one event, carrying enough identity to
// replay it.
type Error struct {
	Stage     Stage
	ObjectID  string
	CameraID  string
	EventTime string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("event %s (camera %s, time %s) failed at %s: %v",
		e.ObjectID, e.CameraID, e.EventTime, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalLogObject lets the failure be logged as one structured field.
func (e *Error) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("stage", e.Stage.String())
	enc.AddString("object_id", e.ObjectID)
	enc.AddString("camera_uuid", e.CameraID)
	enc.AddString("event_time", e.EventTime)
	return nil
}

func newError(stage Stage, ev FrameEvent, err error) *Error {
	return &Error{
		Stage:     stage,
		ObjectID:  ev.ObjectID,
		CameraID:  ev.CameraID,
		EventTime: ev.RawEventTime,
		Err:       err,
	}
}

func eventFields(ev FrameEvent) []zap.Field {
	return []zap.Field{
		zap.String("object_id", ev.ObjectID),
		zap.String("camera_uuid", ev.CameraID),
		zap.String("event_time", ev.RawEventTime),
	}
}
