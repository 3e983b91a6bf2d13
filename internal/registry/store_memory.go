package registry

import (
	"context"
	"sync"

	"healthcert/internal/domain"
	"healthcert/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process memory. The single mutex
// serializes every transition, which trivially satisfies the per-document
// serialization requirement; critical sections are map operations only.
type InMemoryStore struct {
	mu           sync.RWMutex
	documents    map[domain.DocumentID]domain.Document
	certificates map[domain.CertificateID]IssuedCertificate
	// byDocument guards the one-certificate-per-document invariant.
	byDocument map[domain.DocumentID]domain.CertificateID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		documents:    make(map[domain.DocumentID]domain.Document),
		certificates: make(map[domain.CertificateID]IssuedCertificate),
		byDocument:   make(map[domain.DocumentID]domain.CertificateID),
	}
}

func (s *InMemoryStore) CreateDocument(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.documents[doc.ID] = doc
	return nil
}

func (s *InMemoryStore) GetDocument(_ context.Context, id domain.DocumentID) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.documents[id]; ok {
		return doc, nil
	}
	return domain.Document{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListDocumentsByStatus(_ context.Context, status *domain.DocumentStatus) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if status == nil || doc.Status == *status {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *InMemoryStore) SetDocumentStatus(_ context.Context, id domain.DocumentID, from, to domain.DocumentStatus) error {
	if !domain.CanTransition(from, to) {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if doc.Status != from {
		return sentinel.ErrInvalidState
	}
	doc.Status = to
	s.documents[id] = doc
	return nil
}

func (s *InMemoryStore) TransitionToIssued(_ context.Context, id domain.DocumentID, cert IssuedCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if doc.Status != domain.DocumentStatusPending {
		return sentinel.ErrInvalidState
	}
	if _, exists := s.byDocument[id]; exists {
		return sentinel.ErrInvalidState
	}
	doc.Status = domain.DocumentStatusIssued
	s.documents[id] = doc
	s.certificates[cert.ID] = cert
	s.byDocument[id] = cert.ID
	return nil
}

func (s *InMemoryStore) GetCertificate(_ context.Context, id domain.CertificateID) (IssuedCertificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cert, ok := s.certificates[id]; ok {
		return cert, nil
	}
	return IssuedCertificate{}, sentinel.ErrNotFound
}
