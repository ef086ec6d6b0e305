// Package events turns broker messages into processed frames: it parses the
// frame event, locates the stored frame, runs the pipeline and hands the
// result to storage and the search index.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// EventTimeLayout is the timestamp format of event_time. The fractional part
// is optional and no zone is carried.
const EventTimeLayout = "2006-01-02T15:04:05.999999999"

// DestinationLayout formats the stem of the copied frame and its result file.
const DestinationLayout = "20060102T150405"

// FrameEvent identifies one stored frame to analyze.
type FrameEvent struct {
	ObjectID  string
	EventTime time.Time
	// RawEventTime is event_time as received; source paths are cut from it.
	RawEventTime string
	CameraID     string
}

type wireEvent struct {
	ObjectID  *string `json:"object_id"`
	EventTime *string `json:"event_time"`
	CameraID  *string `json:"camera_uuid"`
}

// ParseFrameEvent decodes a broker payload. Trailing newlines and NUL bytes
// are ignored. Every failure wraps ErrMalformedEvent.
func ParseFrameEvent(payload []byte) (FrameEvent, error) {
	body := bytes.TrimRight(payload, "\n\x00")
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return FrameEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch {
	case w.ObjectID == nil || *w.ObjectID == "":
		return FrameEvent{}, fmt.Errorf("%w: missing object_id", ErrMalformedEvent)
	case w.EventTime == nil || *w.EventTime == "":
		return FrameEvent{}, fmt.Errorf("%w: missing event_time", ErrMalformedEvent)
	case w.CameraID == nil || *w.CameraID == "":
		return FrameEvent{}, fmt.Errorf("%w: missing camera_uuid", ErrMalformedEvent)
	}
	if err := checkPathSegment(*w.CameraID); err != nil {
		return FrameEvent{}, fmt.Errorf("%w: camera_uuid: %w", ErrMalformedEvent, err)
	}

	ts, err := time.Parse(EventTimeLayout, *w.EventTime)
	if err != nil {
		return FrameEvent{}, fmt.Errorf("%w: event_time %q: %w", ErrMalformedEvent, *w.EventTime, err)
	}
	return FrameEvent{
		ObjectID:     *w.ObjectID,
		EventTime:    ts,
		RawEventTime: *w.EventTime,
		CameraID:     *w.CameraID,
	}, nil
}

func checkPathSegment(s string) error {
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return fmt.Errorf("%q is not a single path segment", s)
	}
	return nil
}

// SourcePath derives <root>/<date>_<hour>/<minute>/<camera>/<second>.jpg.
// The seconds keep their fractional digits exactly as received.
func (e FrameEvent) SourcePath(videoRoot string) string {
	date, clock, _ := strings.Cut(e.RawEventTime, "T")
	parts := strings.SplitN(clock, ":", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	hour, minute, second := parts[0], parts[1], parts[2]
	return filepath.Join(videoRoot, date+"_"+hour, minute, e.CameraID, second+".jpg")
}

// DestinationStem is the file stem shared by the copied frame and its result.
func (e FrameEvent) DestinationStem() string {
	return e.EventTime.Format(DestinationLayout)
}
