// Package handler exposes verification runs over HTTP, streaming step
// snapshots as server-sent events.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"healthcert/internal/domain"
	"healthcert/internal/platform/middleware"
	"healthcert/internal/registry"
	"healthcert/internal/verification"
	dErrors "healthcert/pkg/domain-errors"
	"healthcert/pkg/platform/httputil"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Submit(ctx context.Context, docID domain.DocumentID, keyA, keyB string, tier domain.SecurityTier) (*verification.Run, error)
	Run(id domain.VerificationRunID) (*verification.Run, bool)
	Release(id domain.VerificationRunID)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router. The events route
// skips the request timeout: it streams for as long as the run executes.
func (h *Handler) Register(r chi.Router) {
	timeout := middleware.Timeout(30 * time.Second)
	r.With(timeout).Post("/verification/runs", h.handleSubmit)
	r.Get("/verification/runs/{runID}/events", h.handleRunEvents)
	r.With(timeout).Post("/verification/runs/{runID}/cancel", h.handleCancel)
}

type submitRequest struct {
	DocumentID string `json:"document_id"`
	KeyA       string `json:"key_a"`
	KeyB       string `json:"key_b"`
	Tier       string `json:"tier"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

// outcomeEvent is the terminal SSE payload.
type outcomeEvent struct {
	Outcome      domain.RunOutcome           `json:"outcome"`
	FailedStepID string                      `json:"failed_step_id,omitempty"`
	Certificate  *registry.IssuedCertificate `json:"certificate,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.Decode[submitRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docID, err := domain.ParseDocumentID(req.DocumentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tier, err := domain.ParseSecurityTier(req.Tier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	run, err := h.service.Submit(ctx, docID, req.KeyA, req.KeyB, tier)
	if err != nil {
		h.logger.WarnContext(ctx, "verification rejected",
			"request_id", requestID,
			"document_id", req.DocumentID,
			"tier", req.Tier,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification submitted",
		"request_id", requestID,
		"run_id", run.ID,
		"document_id", docID,
		"tier", tier,
	)
	httputil.WriteJSON(w, http.StatusAccepted, submitResponse{RunID: run.ID.String()})
}

func (h *Handler) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := domain.ParseVerificationRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, ok := h.service.Run(runID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "verification run %s not found", runID))
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
				if !wroteTerminal {
					if terminal, done := run.Terminal(); done {
						h.writeRunEvent(stream, terminal)
					}
				}
				h.service.Release(runID)
				return
			}
			h.writeRunEvent(stream, ev)
			if ev.Terminal() {
				wroteTerminal = true
			}
		}
	}
}

func (h *Handler) writeRunEvent(stream *httputil.EventStream, ev verification.Event) {
	switch {
	case ev.Err != nil:
		stream.Write("error", httputil.ErrorResponse{
			Error:            string(dErrors.CodeOf(ev.Err)),
			ErrorDescription: ev.Err.Error(),
		})
	case ev.Outcome != "":
		stream.Write("outcome", outcomeEvent{
			Outcome:      ev.Outcome,
			FailedStepID: ev.FailedStepID,
			Certificate:  ev.Certificate,
		})
	case ev.Snapshot != nil:
		stream.Write("snapshot", ev.Snapshot)
	}
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseVerificationRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, ok := h.service.Run(runID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "verification run %s not found", runID))
		return
	}
	run.Cancel()
	w.WriteHeader(http.StatusAccepted)
}
