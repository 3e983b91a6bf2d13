// Package registry is the system of record for documents and their
// certification lifecycle.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"healthcert/internal/audit"
	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
	"healthcert/pkg/platform/sentinel"
)

// AuditPublisher is the slice of the audit trail the registry needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service wraps the store with lifecycle rules and error translation.
// The store enforces atomicity; the service enforces which edges exist.
type Service struct {
	store  Store
	cache  CertificateCache
	logger *slog.Logger
	audit  AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache CertificateCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  NoopCache{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new document. Collaborators may create documents as
// either available or pending; issued is never a creation status.
func (s *Service) Create(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if !doc.Type.IsValid() {
		return domain.Document{}, dErrors.Newf(dErrors.CodeUnsupportedDocumentType, "unsupported document type %q", doc.Type)
	}
	if doc.Name == "" {
		return domain.Document{}, dErrors.New(dErrors.CodeInvalidInput, "document name is required")
	}
	switch doc.Status {
	case "":
		doc.Status = domain.DocumentStatusAvailable
	case domain.DocumentStatusAvailable, domain.DocumentStatusPending:
	default:
		return domain.Document{}, dErrors.Newf(dErrors.CodeInvalidInput, "documents cannot be created as %q", doc.Status)
	}
	if doc.ID.IsEmpty() {
		doc.ID = domain.NewDocumentID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.Document{}, dErrors.Newf(dErrors.CodeConflict, "document %s already exists", doc.ID)
		}
		return domain.Document{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document")
	}
	return doc, nil
}

// Get fetches one document.
func (s *Service) Get(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Document{}, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", id)
		}
		return domain.Document{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get document")
	}
	return doc, nil
}

// List returns documents, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *domain.DocumentStatus) ([]domain.Document, error) {
	docs, err := s.store.ListDocumentsByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

// RequestAvailable models a user requesting certification of a not-yet-issued
// document: the available -> pending edge.
func (s *Service) RequestAvailable(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	err := s.store.SetDocumentStatus(ctx, id, domain.DocumentStatusAvailable, domain.DocumentStatusPending)
	if err != nil {
		return domain.Document{}, s.translateTransitionErr(err, id, "request")
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.NewEvent(audit.KindDocumentRequested, id.String(), nil))
	}
	return s.Get(ctx, id)
}

// TransitionToIssued atomically flips a pending document to issued and
// records its certificate. Invoking it twice for one document rejects the
// second call: issued is reached at most once.
func (s *Service) TransitionToIssued(ctx context.Context, id domain.DocumentID, cert IssuedCertificate) error {
	if err := s.store.TransitionToIssued(ctx, id, cert); err != nil {
		return s.translateTransitionErr(err, id, "issue")
	}
	s.cache.Set(ctx, cert)
	s.logger.InfoContext(ctx, "document issued",
		"document_id", id,
		"certificate_id", cert.ID,
		"tier", cert.SecurityTier,
	)
	return nil
}

// GetCertificate fetches an issued certificate, read-through cached.
func (s *Service) GetCertificate(ctx context.Context, id domain.CertificateID) (IssuedCertificate, error) {
	if cert, ok := s.cache.Get(ctx, id); ok {
		return cert, nil
	}
	cert, err := s.store.GetCertificate(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return IssuedCertificate{}, dErrors.Newf(dErrors.CodeNotFound, "certificate %s not found", id)
		}
		return IssuedCertificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get certificate")
	}
	s.cache.Set(ctx, cert)
	return cert, nil
}

func (s *Service) translateTransitionErr(err error, id domain.DocumentID, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "document %s not found", id)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Newf(dErrors.CodeInvalidTransition, "document %s cannot be %sd in its current status", id, op)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "document transition failed")
	}
}
