// Package handler exposes scan jobs over HTTP, streaming progress as
// server-sent events.
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"healthcert/internal/domain"
	"healthcert/internal/platform/middleware"
	"healthcert/internal/scanner"
	dErrors "healthcert/pkg/domain-errors"
	"healthcert/pkg/platform/httputil"
)

// Service defines the scan operations the handler needs.
type Service interface {
	StartScan(ctx context.Context, job domain.ScanJob) (*scanner.Run, error)
	Run(jobID domain.ScanJobID) (*scanner.Run, bool)
	Release(jobID domain.ScanJobID)
}

// ImageSink accepts uploaded image bytes and hands back a reference.
type ImageSink interface {
	Put(data []byte) string
}

// Handler wires scan endpoints to the scanner service.
type Handler struct {
	service Service
	images  ImageSink
	logger  *slog.Logger
}

func New(service Service, images ImageSink, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		images:  images,
		logger:  logger,
	}
}

// Register mounts scan endpoints on the router. The events route skips the
// request timeout: it streams for as long as the job runs.
func (h *Handler) Register(r chi.Router) {
	timeout := middleware.Timeout(30 * time.Second)
	r.With(timeout).Post("/scan/jobs", h.handleStartScan)
	r.Get("/scan/jobs/{jobID}/events", h.handleScanEvents)
	r.With(timeout).Post("/scan/jobs/{jobID}/cancel", h.handleCancelScan)
}

type startScanRequest struct {
	DocumentType string `json:"document_type"`
	EnhancedMode bool   `json:"enhanced_mode"`
	Image        string `json:"image"`
}

type startScanResponse struct {
	JobID    string `json:"job_id"`
	ImageRef string `json:"image_ref"`
}

func (h *Handler) handleStartScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.Decode[startScanRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	docType, err := domain.ParseDocumentType(req.DocumentType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "image must be base64 encoded"))
		return
	}

	job := domain.ScanJob{
		ID:           domain.NewScanJobID(),
		DocumentType: docType,
		ImageRef:     h.images.Put(data),
		EnhancedMode: req.EnhancedMode,
	}
	if _, err := h.service.StartScan(ctx, job); err != nil {
		h.logger.WarnContext(ctx, "scan rejected",
			"request_id", requestID,
			"document_type", req.DocumentType,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "scan started",
		"request_id", requestID,
		"job_id", job.ID,
		"document_type", docType,
		"enhanced", req.EnhancedMode,
	)
	httputil.WriteJSON(w, http.StatusAccepted, startScanResponse{
		JobID:    job.ID.String(),
		ImageRef: job.ImageRef,
	})
}

func (h *Handler) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := domain.ParseScanJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, ok := h.service.Run(jobID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "scan job %s not found", jobID))
		return
	}

	stream, ok := httputil.NewEventStream(w)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	wroteTerminal := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-run.Events():
			if !open {
				// A prior consumer drained the stream; replay the terminal.
				if !wroteTerminal {
					if terminal, done := run.Terminal(); done {
						h.writeScanEvent(stream, terminal)
					}
				}
				h.service.Release(jobID)
				return
			}
			h.writeScanEvent(stream, ev)
			if ev.Terminal() {
				wroteTerminal = true
			}
		}
	}
}

func (h *Handler) writeScanEvent(stream *httputil.EventStream, ev scanner.Event) {
	switch {
	case ev.Err != nil:
		stream.Write("error", httputil.ErrorResponse{
			Error:            string(dErrors.CodeOf(ev.Err)),
			ErrorDescription: ev.Err.Error(),
		})
	case ev.Result != nil:
		stream.Write("result", ev.Result)
	case ev.Progress != nil:
		stream.Write("progress", ev.Progress)
	}
}

func (h *Handler) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	jobID, err := domain.ParseScanJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, ok := h.service.Run(jobID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "scan job %s not found", jobID))
		return
	}
	run.Cancel()
	w.WriteHeader(http.StatusAccepted)
}
