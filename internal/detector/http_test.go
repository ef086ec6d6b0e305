package detector

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPDetector_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Image)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"polygons":[[0,0,10,0,10,5,0,5],[20,20,30,20,30,40]],"scores":[0.91,0.42]}`))
	}))
	defer srv.Close()

	d, err := NewHTTPDetector(HTTPConfig{URL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	dets, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 32)))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.InDelta(t, 0.91, dets[0].Score, 1e-9)
	assert.Len(t, dets[1].Polygon, 3)
}

func TestHTTPDetector_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"mismatched lengths", http.StatusOK, `{"polygons":[[0,0,1,0,1,1]],"scores":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d, err := NewHTTPDetector(HTTPConfig{URL: srv.URL, Timeout: time.Second})
			require.NoError(t, err)
			_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
			require.Error(t, err)
		})
	}
}

func TestHTTPDetector_SkipsDegeneratePolygons(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"polygons":[[10,10],[0,0,10,0,10,5,0,5],[0,0,1,0,1],[]],"scores":[0.99,0.95,0.9,0.8]}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	d, err := NewHTTPDetector(HTTPConfig{URL: srv.URL, Timeout: time.Second, Logger: zap.New(core)})
	require.NoError(t, err)

	dets, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.InDelta(t, 0.95, dets[0].Score, 1e-9)
	assert.Len(t, dets[0].Polygon, 4)
	assert.Equal(t, 3, logs.FilterMessage("skipping polygon").Len())
}

func TestNewHTTPDetector_RequiresURL(t *testing.T) {
	_, err := NewHTTPDetector(HTTPConfig{})
	require.Error(t, err)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ image.Image) ([]Detection, error) {
		time.Sleep(200 * time.Millisecond)
		return []Detection{{Score: 1}}, nil
	})
	d := WithTimeout(slow, 20*time.Millisecond)

	start := time.Now()
	dets, err := d.Detect(context.Background(), nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, dets)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	fast := Func(func(context.Context, image.Image) ([]Detection, error) {
		return []Detection{{Score: 0.5}}, nil
	})
	dets, err = WithTimeout(fast, time.Second).Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, dets, 1)

	_, wrapped := WithTimeout(fast, 0).(*timeoutDetector)
	assert.False(t, wrapped)
}
