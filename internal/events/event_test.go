package events

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameEvent(t *testing.T) {
	ev, err := ParseFrameEvent([]byte(`{"object_id":"obj-1","event_time":"2023-09-29T06:09:10.500000","camera_uuid":"cam1","extra":1}` + "\n\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "obj-1", ev.ObjectID)
	assert.Equal(t, "cam1", ev.CameraID)
	assert.Equal(t, "2023-09-29T06:09:10.500000", ev.RawEventTime)
	assert.Equal(t, time.Date(2023, 9, 29, 6, 9, 10, 500000000, time.UTC), ev.EventTime)
}

func TestParseFrameEvent_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `object_id=1`},
		{"missing object id", `{"event_time":"2023-09-29T06:09:10.5","camera_uuid":"cam1"}`},
		{"empty object id", `{"object_id":"","event_time":"2023-09-29T06:09:10.5","camera_uuid":"cam1"}`},
		{"missing event time", `{"object_id":"o","camera_uuid":"cam1"}`},
		{"missing camera", `{"object_id":"o","event_time":"2023-09-29T06:09:10.5"}`},
		{"bad time", `{"object_id":"o","event_time":"29.09.2023 06:09","camera_uuid":"cam1"}`},
		{"zoned time", `{"object_id":"o","event_time":"2023-09-29T06:09:10.5Z","camera_uuid":"cam1"}`},
		{"camera escapes root", `{"object_id":"o","event_time":"2023-09-29T06:09:10.5","camera_uuid":"../etc"}`},
		{"camera dot dot", `{"object_id":"o","event_time":"2023-09-29T06:09:10.5","camera_uuid":".."}`},
		{"wrong type", `{"object_id":7,"event_time":"2023-09-29T06:09:10.5","camera_uuid":"cam1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrameEvent([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEvent), "got %v", err)
		})
	}
}

func TestParseFrameEvent_WholeSeconds(t *testing.T) {
	ev, err := ParseFrameEvent([]byte(`{"object_id":"o","event_time":"2023-09-29T06:09:10","camera_uuid":"cam1"}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/video", "2023-09-29_06", "09", "cam1", "10.jpg"), ev.SourcePath("/video"))
}

func TestFrameEvent_Paths(t *testing.T) {
	ev, err := ParseFrameEvent([]byte(`{"object_id":"o","event_time":"2023-09-29T06:09:10.500000","camera_uuid":"cam1"}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/video", "2023-09-29_06", "09", "cam1", "10.500000.jpg"), ev.SourcePath("/video"))
	assert.Equal(t, "20230929T060910", ev.DestinationStem())
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "received", StageReceived.String())
	assert.Equal(t, "image_located", StageImageLocated.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(42).String())

	text, err := StagePersisted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(text))
}

func TestError(t *testing.T) {
	ev := FrameEvent{ObjectID: "o", CameraID: "cam1", RawEventTime: "2023-09-29T06:09:10.5"}
	err := newError(StageImageLocated, ev, ErrFrameNotFound)
	assert.ErrorIs(t, err, ErrFrameNotFound)
	assert.Equal(t, "event o (camera cam1, time 2023-09-29T06:09:10.5) failed at image_located: source frame not found", err.Error())

	var target *Error
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, StageImageLocated, target.Stage)
}
