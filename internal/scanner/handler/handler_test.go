package handler_test

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcert/internal/domain"
	"healthcert/internal/scanner"
	"healthcert/internal/scanner/extractor"
	"healthcert/internal/scanner/handler"
	"healthcert/pkg/testutil"
)

func mustJobID(t *testing.T, s string) domain.ScanJobID {
	t.Helper()
	id, err := domain.ParseScanJobID(s)
	require.NoError(t, err)
	return id
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

func newTestRouter(t *testing.T) (http.Handler, *scanner.Service) {
	t.Helper()
	registry := extractor.NewRegistry()
	extractor.RegisterBuiltins(registry)
	images := scanner.NewImageStore()
	svc := scanner.New(registry, images,
		scanner.WithSteps(4),
		scanner.WithTickInterval(time.Millisecond),
		scanner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	h := handler.New(svc, images, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r, svc
}

type startScanResponse struct {
	JobID    string `json:"job_id"`
	ImageRef string `json:"image_ref"`
}

func startScan(t *testing.T, router http.Handler) startScanResponse {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/scan/jobs", map[string]any{
		"document_type": "birth-certificate",
		"enhanced_mode": false,
		"image":         base64.StdEncoding.EncodeToString(pngBytes()),
	})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	return *testutil.UnmarshalResponse[startScanResponse](t, rr)
}

func TestStartScanValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("unsupported document type", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/scan/jobs", map[string]any{
			"document_type": "passport",
			"image":         base64.StdEncoding.EncodeToString(pngBytes()),
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "unsupported_document_type")
	})

	t.Run("image not base64", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/scan/jobs", map[string]any{
			"document_type": "prescription",
			"image":         "not base64!!",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("bytes that are not an image", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/scan/jobs", map[string]any{
			"document_type": "prescription",
			"image":         base64.StdEncoding.EncodeToString([]byte("plain text")),
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})
}

func TestScanEventsStream(t *testing.T) {
	router, _ := newTestRouter(t)
	started := startScan(t, router)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/"+started.JobID+"/events"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	assert.Contains(t, body, "event: result", "stream must end with the scan result")
	assert.Contains(t, body, `"confidence":95`)
	assert.Contains(t, body, "Certificate Number")

	// Progress ticks precede the result.
	resultAt := strings.Index(body, "event: result")
	progressAt := strings.Index(body, "event: progress")
	if progressAt >= 0 {
		assert.Less(t, progressAt, resultAt)
	}
}

func TestScanEventsReplaysTerminalForLateSubscriber(t *testing.T) {
	router, svc := newTestRouter(t)
	started := startScan(t, router)

	// First consumer drains the stream to completion.
	first := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/"+started.JobID+"/events"))
	require.Contains(t, first.Body.String(), "event: result")

	// The run was released after the first stream; re-attaching is a 404.
	second := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/"+started.JobID+"/events"))
	testutil.AssertStatus(t, second, http.StatusNotFound)

	_, ok := svc.Run(mustJobID(t, started.JobID))
	assert.False(t, ok)
}

func TestCancelScan(t *testing.T) {
	registry := extractor.NewRegistry()
	extractor.RegisterBuiltins(registry)
	images := scanner.NewImageStore()
	svc := scanner.New(registry, images,
		scanner.WithSteps(1000),
		scanner.WithTickInterval(10*time.Millisecond),
		scanner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	h := handler.New(svc, images, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	h.Register(router)

	started := startScan(t, router)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/scan/jobs/"+started.JobID+"/cancel", nil))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	stream := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/"+started.JobID+"/events"))
	body := stream.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "scan_cancelled")
	assert.NotContains(t, body, "event: result")
}

func TestScanEventsUnknownJob(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/not-a-uuid/events"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/scan/jobs/00000000-0000-0000-0000-000000000000/events"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
