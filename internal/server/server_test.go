package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfmill/pdfmill/internal/server"
	"github.com/pdfmill/pdfmill/pkg/convert"
	"github.com/pdfmill/pdfmill/pkg/dispatch"
	"github.com/pdfmill/pdfmill/pkg/model"
	"github.com/pdfmill/pdfmill/pkg/storage"
)

type stubRenderer struct{}

func (stubRenderer) RenderPDF(_ context.Context, _ []byte, _ string) ([]byte, error) {
	return []byte("%PDF-1.4 office"), nil
}

func setupServer(t *testing.T, dOpts dispatch.Options, sOpts server.Options) *server.Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := convert.DefaultRegistry(stubRenderer{})
	d := dispatch.NewDispatcher(registry, store, nil, logger, dOpts)

	return server.NewServer(d, registry, store, logger, sOpts)
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_Health(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Convert_Text(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "notes.txt", []byte("hello world")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notes_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestServer_Convert_MissingExtension(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "README", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp["error"])
}

func TestServer_Convert_UnknownExtension(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "archive.zip", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Convert_MissingFileField(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	req := httptest.NewRequest("POST", "/convert", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Convert_QuotaExhausted(t *testing.T) {
	srv := setupServer(t, dispatch.Options{DailyLimit: 2}, server.Options{})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, uploadRequest(t, "a.txt", []byte("x")))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "a.txt", []byte("x")))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp map[string]string
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Contains(t, resp["error"], "limit")
}

func TestServer_Convert_OversizedUpload(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{MaxUploadBytes: 1024})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "big.txt", bytes.Repeat([]byte("x"), 64*1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_Formats(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	req := httptest.NewRequest("GET", "/api/v1/formats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Formats []string `json:"formats"`
		Target  string   `json:"target"`
	}
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "pdf", resp.Target)
	assert.Contains(t, resp.Formats, "txt")
	assert.Contains(t, resp.Formats, "docx")
	assert.Len(t, resp.Formats, 12)
}

func TestServer_Usage(t *testing.T) {
	srv := setupServer(t, dispatch.Options{DailyLimit: 5}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "a.txt", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/usage", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Used      int `json:"used"`
		Remaining int `json:"remaining"`
		Limit     int `json:"limit"`
	}
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Used)
	assert.Equal(t, 4, resp.Remaining)
	assert.Equal(t, 5, resp.Limit)
}

func TestServer_Conversions(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "a.txt", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/conversions", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var records []model.ConversionRecord
	err := json.NewDecoder(w.Body).Decode(&records)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.txt", records[0].Filename)
	assert.Equal(t, "txt", records[0].SourceFormat)
}

func TestServer_Conversions_InvalidLimit(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	req := httptest.NewRequest("GET", "/api/v1/conversions?limit=banana", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Summary(t *testing.T) {
	srv := setupServer(t, dispatch.Options{}, server.Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "a.txt", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/summary?period=daily", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summary model.ConversionSummary
	err := json.NewDecoder(w.Body).Decode(&summary)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalConversions)
	assert.Equal(t, int64(1), summary.ByFormat["txt"])
}

func TestServer_RetainsArtifact(t *testing.T) {
	outDir := t.TempDir()
	srv := setupServer(t, dispatch.Options{}, server.Options{OutputDir: outDir})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "keep.txt", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "keep_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".pdf"))
}
