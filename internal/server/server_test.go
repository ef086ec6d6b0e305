package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/testutil"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	gotBounds image.Rectangle
}

func (f *fakeFinder) FindCodes(_ context.Context, img image.Image) pipeline.Outcome {
	f.gotBounds = img.Bounds()
	return pipeline.Outcome{Codes: []assembler.CandidateCode{{
		Text:  "12345",
		Score: assembler.Defined(0.95),
		Box:   utils.Box{MinX: 100, MinY: 50, MaxX: 185, MaxY: 70},
	}}}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.CreateTestImage(w, h, color.White)))
	return buf.Bytes()
}

func TestHealthz(t *testing.T) {
	s := New(DefaultConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReadyz(t *testing.T) {
	healthy := true
	s := New(DefaultConfig(),
		WithReadinessCheck("broker", func(context.Context) error { return nil }),
		WithReadinessCheck("index", func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]string{"broker": "ok", "index": "connection refused"}, body.Checks)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(DefaultConfig())
	h := s.Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `codespot_http_requests_total{endpoint="/healthz",method="GET",status="200"}`)
}

func TestCodes_RawBody(t *testing.T) {
	f := &fakeFinder{}
	s := New(DefaultConfig(), WithCodeFinder(f))

	req := httptest.NewRequest(http.MethodPost, "/v1/codes", bytes.NewReader(pngBytes(t, 64, 32)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, image.Rect(0, 0, 64, 32), f.gotBounds)
	assert.JSONEq(t,
		`{"result":[{"code":"12345","score":0.95,"bbox":[100,50,185,70]}],"detection_degraded":false}`,
		rec.Body.String())
}

func TestCodes_Multipart(t *testing.T) {
	f := &fakeFinder{}
	s := New(DefaultConfig(), WithCodeFinder(f))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 20, 10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/codes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, image.Rect(0, 0, 20, 10), f.gotBounds)
}

func TestCodes_Errors(t *testing.T) {
	s := New(DefaultConfig(), WithCodeFinder(&fakeFinder{}))
	h := s.Handler()

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"wrong method", httptest.NewRequest(http.MethodGet, "/v1/codes", nil), http.StatusMethodNotAllowed},
		{"empty body", httptest.NewRequest(http.MethodPost, "/v1/codes", nil), http.StatusBadRequest},
		{"not an image", httptest.NewRequest(http.MethodPost, "/v1/codes", strings.NewReader("hello")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			var e ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestCodes_DisabledWithoutFinder(t *testing.T) {
	s := New(DefaultConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/codes", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s := New(Config{ShutdownTimeout: time.Second})
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
