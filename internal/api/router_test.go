package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/internal/api/handlers"
	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/testutil"
)

type fakeConverter struct {
	result *domain.ConversionResult
	err    error
	last   domain.ConversionRequest
}

func (f *fakeConverter) Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	f.last = req
	return f.result, f.err
}

type fakeEvents struct {
	events []audit.Event
	limit  int
}

func (f *fakeEvents) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	f.limit = limit
	return f.events, nil
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postConvert(t *testing.T, h http.Handler, fields map[string]string, fileName string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, fileName, file)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	h := NewRouter(Dependencies{OCREngine: "tesseract"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ocr":"tesseract"`)
}

func TestReady_Unavailable(t *testing.T) {
	h := NewRouter(Dependencies{Ready: func(ctx context.Context) error {
		return errors.New("audit database unreachable")
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestListPairs(t *testing.T) {
	h := NewRouter(Dependencies{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.PairsResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Pairs, len(convert.SupportedPairs()))
}

func TestConvert_Success(t *testing.T) {
	conv := &fakeConverter{result: &domain.ConversionResult{
		Data:      []byte("Hello\n"),
		FileName:  "scan.txt",
		MediaType: domain.MediaTypeText,
		PageCount: 2,
	}}
	h := NewRouter(Dependencies{Converter: conv})

	rec := postConvert(t, h, map[string]string{"target": "txt", "fallback": "text"}, "scan.pdf", []byte("%PDF-1.4"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello\n", rec.Body.String())
	assert.Equal(t, domain.MediaTypeText, rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Page-Count"))

	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "scan.txt", params["filename"])

	assert.Equal(t, domain.TargetText, conv.last.TargetKind)
	assert.Equal(t, domain.SourceKind(""), conv.last.SourceKind, "source left for sniffing")
	assert.Equal(t, "scan.pdf", conv.last.SourceName)
	assert.True(t, conv.last.Options.AllowTextFallback)
}

func TestConvert_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		recoverable bool
	}{
		{"unsupported", domain.UnsupportedConversionError("image to xlsx"), http.StatusUnsupportedMediaType, "unsupported_conversion", false},
		{"unreadable", domain.UnreadableDocumentError("bad xref", nil), http.StatusUnprocessableEntity, "unreadable_document", false},
		{"no table", domain.NoTableFoundError("none on 3 pages"), http.StatusUnprocessableEntity, "no_table_found", true},
		{"encoding", domain.EncodingFailureError("zip", errors.New("boom")), http.StatusInternalServerError, "encoding_failure", false},
		{"validation", domain.ValidationError("too big", nil), http.StatusBadRequest, "validation", false},
		{"no ocr", domain.ConfigError("no OCR engine configured", nil), http.StatusServiceUnavailable, "config", false},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Dependencies{Converter: &fakeConverter{err: tt.err}})

			rec := postConvert(t, h, map[string]string{"target": "xlsx"}, "in.pdf", []byte("data"))

			assert.Equal(t, tt.status, rec.Code)
			var resp handlers.ErrorDTO
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.recoverable, resp.Recoverable)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestConvert_BadForm(t *testing.T) {
	h := NewRouter(Dependencies{Converter: &fakeConverter{}})

	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
	}{
		{"missing target", map[string]string{}, []byte("x")},
		{"unknown target", map[string]string{"target": "odt"}, []byte("x")},
		{"unknown source", map[string]string{"target": "pdf", "source": "docx"}, []byte("x")},
		{"missing file", map[string]string{"target": "pdf"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postConvert(t, h, tt.fields, "in.png", tt.file)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"validation"`)
		})
	}
}

func TestConvert_BodyTooLarge(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Limits.MaxUploadBytes = 16
	h := NewRouter(Dependencies{Config: cfg, Converter: &fakeConverter{}})

	rec := postConvert(t, h, map[string]string{"target": "pdf"}, "big.png", make([]byte, 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConvert_EndToEndImageToPDF(t *testing.T) {
	h := NewRouter(Dependencies{Converter: convert.New(convert.Options{})})

	rec := postConvert(t, h, map[string]string{"target": "pdf", "source": "image"}, "photo.jpg", testutil.JPEG(t, 32, 24))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.MediaTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "photo.pdf")
}

func TestEvents(t *testing.T) {
	events := &fakeEvents{events: []audit.Event{{
		SourceKind: "pdf",
		TargetKind: "docx",
		Status:     audit.StatusOK,
		Duration:   1500 * time.Millisecond,
		OccurredAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}}}
	h := NewRouter(Dependencies{Events: events})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=5000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, events.limit, "limit is capped")

	var resp handlers.EventsResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, int64(1500), resp.Events[0].DurationMs)
	assert.Equal(t, "2026-05-01T09:00:00Z", resp.Events[0].OccurredAt)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_HiddenWithoutSource(t *testing.T) {
	h := NewRouter(Dependencies{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}
	h := NewRouter(Dependencies{Config: cfg})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Limits.RequestsPerMinute = 2
	h := NewRouter(Dependencies{Config: cfg})

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversions", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(config.ServerConfig{GracefulShutdown: time.Second}, NewRouter(Dependencies{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
