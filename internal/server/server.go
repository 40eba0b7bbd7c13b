package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdfmill/pdfmill/pkg/convert"
	"github.com/pdfmill/pdfmill/pkg/dispatch"
	"github.com/pdfmill/pdfmill/pkg/model"
	"github.com/pdfmill/pdfmill/pkg/storage"
)

// Server exposes the conversion endpoint and the audit/usage API.
type Server struct {
	dispatcher *dispatch.Dispatcher
	registry   *convert.Registry
	store      storage.Store
	mux        *http.ServeMux
	logger     *slog.Logger
	maxUpload  int64
	outputDir  string
}

// Options tune server behavior.
type Options struct {
	// MaxUploadBytes caps the request body size (default 16 MB).
	MaxUploadBytes int64

	// OutputDir, when set, keeps a server-side copy of every artifact.
	OutputDir string
}

// NewServer creates the HTTP server.
func NewServer(d *dispatch.Dispatcher, registry *convert.Registry, store storage.Store, logger *slog.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 * 1024 * 1024
	}
	s := &Server{
		dispatcher: d,
		registry:   registry,
		store:      store,
		mux:        http.NewServeMux(),
		logger:     logger,
		maxUpload:  opts.MaxUploadBytes,
		outputDir:  opts.OutputDir,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /convert", s.handleConvert)
	s.mux.HandleFunc("GET /api/v1/formats", s.handleFormats)
	s.mux.HandleFunc("GET /api/v1/usage", s.handleUsage)
	s.mux.HandleFunc("GET /api/v1/conversions", s.handleConversions)
	s.mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}

	res, err := s.dispatcher.Convert(r.Context(), model.ConversionRequest{
		Client:   clientKey(r),
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		writeError(w, dispatch.HTTPStatus(err), dispatch.UserMessage(err))
		return
	}

	if s.outputDir != "" {
		s.retainArtifact(res)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.OutputName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.Write(res.PDF)
}

// retainArtifact keeps a server-side copy; failures are logged, not fatal,
// since the client already holds the authoritative bytes.
func (s *Server) retainArtifact(res *model.ConversionResult) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		s.logger.Error("create output directory", "dir", s.outputDir, "error", err)
		return
	}
	path := filepath.Join(s.outputDir, res.OutputName)
	if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
		s.logger.Error("retain artifact", "path", path, "error", err)
	}
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"formats": s.registry.Extensions(),
		"target":  model.TargetFormat,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	client := r.URL.Query().Get("client")
	if client == "" {
		client = clientKey(r)
	}

	used, remaining, err := s.dispatcher.Usage(r.Context(), client)
	if err != nil {
		s.logger.Error("read usage", "client", client, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"client":    client,
		"day":       model.Today(),
		"used":      used,
		"remaining": remaining,
		"limit":     s.dispatcher.DailyLimit(),
	})
}

func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := model.ReportFilter{
		Client:       r.URL.Query().Get("client"),
		SourceFormat: r.URL.Query().Get("format"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	records, err := s.store.QueryConversions(ctx, filter)
	if err != nil {
		s.logger.Error("query conversions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	period := model.ReportPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = model.PeriodDaily
	}

	start, end := model.PeriodBounds(period)
	filter := model.ReportFilter{
		Client:       r.URL.Query().Get("client"),
		SourceFormat: r.URL.Query().Get("format"),
		StartTime:    start,
		EndTime:      end,
	}

	summary, err := s.store.AggregateConversions(ctx, filter)
	if err != nil {
		s.logger.Error("aggregate conversions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// clientKey identifies the caller for quota accounting: the remote host
// without port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
