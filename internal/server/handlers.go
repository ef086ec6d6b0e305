package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
)

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CodesResponse is the body of POST /v1/codes: the same record the event
// handler persists, plus whether detection degraded.
type CodesResponse struct {
	pipeline.ResultRecord
	DetectionDegraded bool `json:"detection_degraded"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Time: now()})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ready", Time: now(), Checks: map[string]string{}}
	status := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	s.writeJSON(w, status, resp)
}

// codesHandler runs the pipeline on an uploaded frame, either as the raw
// request body or as the multipart field "image".
func (s *Server) codesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := s.cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	data, err := readUpload(r, limit)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeError(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	out := s.finder.FindCodes(ctx, img)
	s.writeJSON(w, http.StatusOK, CodesResponse{
		ResultRecord:      out.Record(),
		DetectionDegraded: out.DetectErr != nil,
	})
}

type uploadError string

func (e uploadError) Error() string { return string(e) }

func readUpload(r *http.Request, limit int64) ([]byte, error) {
	if !isMultipart(r) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, uploadError("Failed to read image data")
		}
		if len(data) == 0 {
			return nil, uploadError("No image data provided")
		}
		return data, nil
	}
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, uploadError("Failed to parse form data")
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, uploadError("No image file provided")
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, uploadError("Failed to read image data")
	}
	return data, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
