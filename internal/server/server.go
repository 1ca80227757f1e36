// Package server exposes the analysis pipeline over HTTP: single and batch
// multipart uploads plus a health probe.
package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/imagegate/internal/model"
	"github.com/sells-group/imagegate/internal/pipeline"
)

// Request guards. Validation failures are rejected before any provider call.
const (
	MaxBatchFiles     = 50
	DefaultMaxUpload  = 32 << 20 // per-request multipart memory limit
	skipDetectionFlag = "skip_detection"
)

// Server handles the HTTP surface over an Analyzer.
type Server struct {
	analyzer         *pipeline.Analyzer
	batchConcurrency int
	maxUploadBytes   int64
}

// New creates a Server. batchConcurrency <= 0 selects the pipeline default.
func New(analyzer *pipeline.Analyzer, batchConcurrency int) *Server {
	return &Server{
		analyzer:         analyzer,
		batchConcurrency: batchConcurrency,
		maxUploadBytes:   DefaultMaxUpload,
	}
}

// WithMaxUpload overrides the per-request multipart memory limit.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/batch", s.handleAnalyzeBatch)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze runs the full pipeline for one uploaded image.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !isImageUpload(header) {
		writeError(w, http.StatusBadRequest, "only image uploads are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	opts := pipeline.Options{SkipDetection: skipDetection(r)}
	record, err := s.analyzer.Analyze(r.Context(), data, header.Filename, opts)
	if err != nil {
		if eris.Is(err, pipeline.ErrUnreadableImage) {
			writeError(w, http.StatusUnprocessableEntity, "image could not be decoded")
			return
		}
		zap.L().Error("server: analysis failed",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handleAnalyzeBatch runs the pipeline over up to MaxBatchFiles uploads.
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}
	if len(files) > MaxBatchFiles {
		writeError(w, http.StatusBadRequest, "batch size exceeds the 50-file limit")
		return
	}

	opts := pipeline.Options{SkipDetection: skipDetection(r)}

	// Entries keep the upload order; rejected files claim their slot here,
	// analyzable files claim theirs after the batch run.
	entries := make([]model.BatchEntry, len(files))
	items := make([]pipeline.BatchItem, 0, len(files))
	var slots []int
	for i, header := range files {
		if !isImageUpload(header) {
			entries[i] = model.BatchEntry{
				Filename: header.Filename,
				Err:      "unsupported content type",
			}
			continue
		}
		data, err := readUpload(header)
		if err != nil {
			entries[i] = model.BatchEntry{Filename: header.Filename, Err: err.Error()}
			continue
		}
		items = append(items, pipeline.BatchItem{Filename: header.Filename, Data: data})
		slots = append(slots, i)
	}

	batch := s.analyzer.AnalyzeBatch(r.Context(), items, s.batchConcurrency, opts)
	for i, entry := range batch.Results {
		entries[slots[i]] = entry
	}

	result := &model.BatchResult{Results: entries}
	result.Tally()

	writeJSON(w, http.StatusOK, result)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, eris.Wrap(err, "server: open upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrap(err, "server: read upload")
	}
	return data, nil
}

func isImageUpload(header *multipart.FileHeader) bool {
	return strings.HasPrefix(header.Header.Get("Content-Type"), "image/")
}

func skipDetection(r *http.Request) bool {
	v := r.URL.Query().Get(skipDetectionFlag)
	if v == "" {
		v = r.FormValue(skipDetectionFlag)
	}
	return v == "true" || v == "1"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
