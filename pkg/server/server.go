package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nodewee/doc-structurer/pkg/core"
	"github.com/nodewee/doc-structurer/pkg/library"
	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// uploads larger than this are rejected before spooling
const maxUploadBytes = 256 << 20

// Server exposes the dispatcher as a long-running HTTP service. Requests
// are independent; the only shared state is the immutable configuration and
// the selector's internally locked cache, so no extra synchronization is
// needed here.
type Server struct {
	addr       string
	logger     *logger.Logger
	dispatcher *core.Dispatcher
	httpServer *http.Server
}

// New creates a server around an existing dispatcher
func New(addr string, log *logger.Logger, dispatcher *core.Dispatcher) *Server {
	return &Server{
		addr:       addr,
		logger:     log,
		dispatcher: dispatcher,
	}
}

// Handler builds the chi router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/extract", s.handleExtract)
	r.Post("/v1/info", s.handleInfo)
	return r
}

// Run serves until the context is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	s.logger.Progress("🌐", "Serving on %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract accepts a multipart upload, spools it to a temp file
// preserving the extension for type detection, and dispatches it
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, utils.NewValidationError("multipart upload must carry a \"file\" part", err))
		return
	}
	defer file.Close()

	spooled, err := spoolUpload(file, header.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer os.Remove(spooled)

	options := make(map[string]string)
	if r.MultipartForm != nil {
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				options[key] = values[0]
			}
		}
	}

	resp, err := s.dispatcher.Extract(r.Context(), spooled, options)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The wire carries the canonical document itself, so a remote backend
	// descriptor can point at another instance's serve surface.
	s.logger.Info("Extracted %s via %s in %dms", header.Filename, resp.ExtractionMethod, resp.ProcessingTimeMs)
	writeJSON(w, http.StatusOK, resp.ExtractedContent)
}

// handleInfo answers the lightweight metadata query from the file name and
// size alone; nothing is uploaded for an info probe
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var query struct {
		SourceFile string `json:"source_file"`
		SizeBytes  int64  `json:"size_bytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.writeError(w, utils.NewValidationError("invalid info query body", err))
		return
	}
	if query.SourceFile == "" {
		s.writeError(w, utils.NewValidationError("source_file cannot be empty", nil))
		return
	}

	res := library.EstimateInfo(query.SourceFile, query.SizeBytes)
	writeJSON(w, http.StatusOK, res)
}

// spoolUpload writes the uploaded content to a temp file that keeps the
// original extension
func spoolUpload(file io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	tmp, err := os.CreateTemp("", "doc-structurer-upload-*"+ext)
	if err != nil {
		return "", utils.NewIOError("creating spool file", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", utils.NewIOError("spooling upload", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", utils.NewIOError("spooling upload", err)
	}
	return tmp.Name(), nil
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// failure on the error channel only, never as a partial success payload
func (s *Server) writeError(w http.ResponseWriter, err error) {
	errorType := utils.GetErrorType(err)

	status := http.StatusInternalServerError
	switch errorType {
	case utils.ErrorTypeValidation:
		status = http.StatusBadRequest
	case utils.ErrorTypeNoBackend:
		status = http.StatusServiceUnavailable
	case utils.ErrorTypeBackend:
		status = http.StatusBadGateway
	case utils.ErrorTypeIO:
		status = http.StatusUnprocessableEntity
	}

	payload := map[string]string{
		"status":     "error",
		"error_type": string(errorType),
		"message":    err.Error(),
	}
	if kind, ok := utils.GetFailureKind(err); ok {
		payload["failure_kind"] = string(kind)
	}
	s.logger.Error("Request failed (%s): %v", errorType, err)
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
