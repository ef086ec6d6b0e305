package index

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatImagePosition(t *testing.T) {
	tests := []struct {
		box  utils.Box
		want string
	}{
		{utils.Box{MinX: 1870, MinY: 0, MaxX: 1920, MaxY: 26}, "BBOX (1870.0,0.0,1920.0,26.0)"},
		{utils.Box{MinX: 100.5, MinY: 50.25, MaxX: 185, MaxY: 70.125}, "BBOX (100.5,50.25,185.0,70.125)"},
		{utils.Box{MinX: 0.1, MinY: 0, MaxX: 0.2, MaxY: 1}, "BBOX (0.1,0.0,0.2,1.0)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatImagePosition(tt.box))
		})
	}
}

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	User   string
	Pass   string
	Body   map[string]any
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Delay = 0
	cfg.RetryCount = 2
	cfg.RetryWait = time.Millisecond
	cfg.RetryMaxWait = 5 * time.Millisecond
	return cfg
}

func TestUpdateRegistration_Request(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Query = r.URL.RawQuery
		got.User, got.Pass, _ = r.BasicAuth()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updated": 2, "version_conflicts": 1, "failures": []}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + "/")
	cfg.Username, cfg.Password = "user", "secret"
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	resp, err := c.UpdateRegistration(context.Background(), "obj-1",
		NewRegistration("12345", utils.Box{MinX: 100, MinY: 50, MaxX: 185, MaxY: 70}))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Updated)
	assert.Equal(t, 1, resp.VersionConflicts)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/event_*/_update_by_query", got.Path)
	assert.Equal(t, "conflicts=proceed", got.Query)
	assert.Equal(t, "user", got.User)
	assert.Equal(t, "secret", got.Pass)

	want := `{
		"query": {"bool": {"filter": {"terms": {"object_id.keyword": ["obj-1"]}}}},
		"script": {
			"source": "ctx._source.registration = params.new_field",
			"lang": "painless",
			"params": {"new_field": {"text": "12345", "image_position": "BBOX (100.0,50.0,185.0,70.0)"}}
		}
	}`
	body, err := json.Marshal(got.Body)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(body))
}

func TestRegister_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updated": 1}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)
	require.NoError(t, c.Register(context.Background(), "obj", "12345", utils.Box{MaxX: 1, MaxY: 1}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegister_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)
	err = c.Register(context.Background(), "obj", "12345", utils.Box{})
	require.ErrorIs(t, err, ErrUpdateRejected)
	assert.Contains(t, err.Error(), "index_not_found_exception")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegister_DeadLetterAndReplay(t *testing.T) {
	var healthy atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updated": 1}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DeadLetterDir = t.TempDir()
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	box := utils.Box{MinX: 1870, MaxX: 1920, MaxY: 26}
	require.Error(t, c.Register(context.Background(), "obj-9", "ABCD1234", box))
	assert.Equal(t, int32(cfg.RetryCount+1), calls.Load())

	entries, err := c.DeadLetters().List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	dl := entries[0].Letter
	assert.Equal(t, "obj-9", dl.ObjectID)
	assert.Equal(t, Registration{Text: "ABCD1234", ImagePosition: "BBOX (1870.0,0.0,1920.0,26.0)"}, dl.Registration)
	assert.Equal(t, cfg.RetryCount+1, dl.Attempts)
	assert.NotEmpty(t, dl.ID)

	// still failing: the letter stays
	rep, err := c.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReplayReport{Failed: 1}, rep)

	healthy.Store(true)
	rep, err = c.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReplayReport{Replayed: 1}, rep)

	entries, err = c.DeadLetters().List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegister_DelayHonoursContext(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Delay = time.Hour
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.Register(ctx, "obj", "1", utils.Box{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegister_CancelledDelayKeepsDeadLetter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updated": 1}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Delay = time.Hour
	cfg.DeadLetterDir = t.TempDir()
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Register(ctx, "obj-7", "12345", utils.Box{MaxX: 10, MaxY: 5})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())

	entries, err := c.DeadLetters().List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "obj-7", entries[0].Letter.ObjectID)
	assert.Equal(t, "12345", entries[0].Letter.Registration.Text)
	assert.Zero(t, entries[0].Letter.Attempts)

	rep, err := c.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReplayReport{Replayed: 1}, rep)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReplay_RequiresStore(t *testing.T) {
	c, err := NewClient(testConfig("http://localhost:9200"), nil)
	require.NoError(t, err)
	assert.Nil(t, c.DeadLetters())
	_, err = c.Replay(context.Background())
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "url required")

	cfg.URL = "http://localhost:9200"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Pattern = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.RetryCount = -1
	require.Error(t, bad.Validate())

	bad = cfg
	bad.RetryMaxWait = time.Millisecond
	require.Error(t, bad.Validate())
}
