// Package handler exposes the document registry, certificates, and reference
// codes over HTTP.
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
	"healthcert/pkg/platform/httputil"
)

// Service defines the registry operations the handler needs.
type Service interface {
	Create(ctx context.Context, doc domain.Document) (domain.Document, error)
	Get(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	List(ctx context.Context, status *domain.DocumentStatus) ([]domain.Document, error)
	RequestAvailable(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	GetCertificate(ctx context.Context, id domain.CertificateID) (registry.IssuedCertificate, error)
}

// RefcodeService encodes and decodes reference payloads.
type RefcodeService interface {
	Encode(subjectType domain.SubjectType, subjectID string) (domain.ReferenceCode, error)
	Decode(payload string) (domain.SubjectType, string, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service  Service
	refcodes RefcodeService
	logger   *slog.Logger
}

func New(service Service, refcodes RefcodeService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		refcodes: refcodes,
		logger:   logger,
	}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/documents", h.handleCreateDocument)
		r.Get("/documents", h.handleListDocuments)
		r.Get("/documents/{documentID}", h.handleGetDocument)
		r.Post("/documents/{documentID}/request", h.handleRequestDocument)
		r.Get("/certificates/{certificateID}", h.handleGetCertificate)
		r.Post("/refcodes", h.handleEncodeRefcode)
		r.Get("/refcodes/{payload}", h.handleDecodeRefcode)
	})
}

type createDocumentRequest struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.Decode[createDocumentRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc := domain.Document{
		ID:          domain.DocumentID(req.ID),
		Type:        domain.DocumentType(req.Type),
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.DocumentStatus(req.Status),
	}
	created, err := h.service.Create(ctx, doc)
	if err != nil {
		h.logger.WarnContext(ctx, "document creation rejected",
			"request_id", requestID,
			"type", req.Type,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document created",
		"request_id", requestID,
		"document_id", created.ID,
		"type", created.Type,
		"status", created.Status,
	)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var status *domain.DocumentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseDocumentStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = &parsed
	}

	docs, err := h.service.List(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleRequestDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.RequestAvailable(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "document requested",
		"request_id", middleware.GetRequestID(ctx),
		"document_id", id,
	)
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.GetCertificate(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

type encodeRefcodeRequest struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
}

func (h *Handler) handleEncodeRefcode(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[encodeRefcodeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subjectType, err := domain.ParseSubjectType(req.SubjectType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	code, err := h.refcodes.Encode(subjectType, req.SubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, code)
}

type decodeRefcodeResponse struct {
	SubjectType domain.SubjectType `json:"subject_type"`
	SubjectID   string             `json:"subject_id"`
}

func (h *Handler) handleDecodeRefcode(w http.ResponseWriter, r *http.Request) {
	payload := chi.URLParam(r, "payload")
	subjectType, subjectID, err := h.refcodes.Decode(payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decodeRefcodeResponse{
		SubjectType: subjectType,
		SubjectID:   subjectID,
	})
}
