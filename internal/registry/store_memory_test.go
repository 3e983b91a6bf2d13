package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthcert/internal/domain"
	"healthcert/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newDocument(status domain.DocumentStatus) domain.Document {
	return domain.Document{
		ID:        domain.NewDocumentID(),
		Type:      domain.DocumentTypeBirthCertificate,
		Name:      "Birth Certificate",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *MemoryStoreSuite) newCertificate(docID domain.DocumentID) IssuedCertificate {
	return IssuedCertificate{
		Certificate: domain.Certificate{
			ID:               domain.NewCertificateID(),
			DocumentID:       docID,
			IssuedAt:         time.Now().UTC(),
			IssuedBy:         "healthcert-authority",
			SignaturePayload: "signed",
			SecurityTier:     domain.TierStandard,
		},
		ReferencePayload: "HC1.payload",
	}
}

// TestDocumentLifecycle verifies creation and lookup behavior.
func (s *MemoryStoreSuite) TestDocumentLifecycle() {
	s.Run("creates and retrieves a document", func() {
		doc := s.newDocument(domain.DocumentStatusAvailable)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc.ID, found.ID)
		s.Equal(domain.DocumentStatusAvailable, found.Status)
	})

	s.Run("rejects duplicate creation", func() {
		doc := s.newDocument(domain.DocumentStatusAvailable)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
		s.Require().ErrorIs(s.store.CreateDocument(s.ctx, doc), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown document", func() {
		_, err := s.store.GetDocument(s.ctx, domain.NewDocumentID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("filters list by status", func() {
		store := NewInMemoryStore()
		s.Require().NoError(store.CreateDocument(s.ctx, s.newDocument(domain.DocumentStatusAvailable)))
		s.Require().NoError(store.CreateDocument(s.ctx, s.newDocument(domain.DocumentStatusAvailable)))
		s.Require().NoError(store.CreateDocument(s.ctx, s.newDocument(domain.DocumentStatusPending)))

		available := domain.DocumentStatusAvailable
		docs, err := store.ListDocumentsByStatus(s.ctx, &available)
		s.Require().NoError(err)
		s.Len(docs, 2)

		all, err := store.ListDocumentsByStatus(s.ctx, nil)
		s.Require().NoError(err)
		s.Len(all, 3)
	})
}

// TestStatusTransitions verifies the compare-and-swap status update.
func (s *MemoryStoreSuite) TestStatusTransitions() {
	s.Run("swaps status when current matches", func() {
		doc := s.newDocument(domain.DocumentStatusAvailable)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		err := s.store.SetDocumentStatus(s.ctx, doc.ID, domain.DocumentStatusAvailable, domain.DocumentStatusPending)
		s.Require().NoError(err)

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.DocumentStatusPending, found.Status)
	})

	s.Run("rejects swap when current status differs", func() {
		doc := s.newDocument(domain.DocumentStatusPending)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		err := s.store.SetDocumentStatus(s.ctx, doc.ID, domain.DocumentStatusAvailable, domain.DocumentStatusPending)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("returns ErrNotFound for unknown document", func() {
		err := s.store.SetDocumentStatus(s.ctx, domain.NewDocumentID(), domain.DocumentStatusAvailable, domain.DocumentStatusPending)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects edges outside the lifecycle table", func() {
		doc := s.newDocument(domain.DocumentStatusPending)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		// pending -> available would un-request the document; no such edge.
		err := s.store.SetDocumentStatus(s.ctx, doc.ID, domain.DocumentStatusPending, domain.DocumentStatusAvailable)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.DocumentStatusPending, found.Status)
	})
}

// TestIssuance verifies the atomic pending-to-issued transition.
func (s *MemoryStoreSuite) TestIssuance() {
	s.Run("flips pending document and records certificate", func() {
		doc := s.newDocument(domain.DocumentStatusPending)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		cert := s.newCertificate(doc.ID)
		s.Require().NoError(s.store.TransitionToIssued(s.ctx, doc.ID, cert))

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.DocumentStatusIssued, found.Status)

		got, err := s.store.GetCertificate(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(doc.ID, got.DocumentID)
		s.Equal("HC1.payload", got.ReferencePayload)
	})

	s.Run("rejects issuance of a non-pending document", func() {
		doc := s.newDocument(domain.DocumentStatusAvailable)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		err := s.store.TransitionToIssued(s.ctx, doc.ID, s.newCertificate(doc.ID))
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.DocumentStatusAvailable, found.Status, "status must not change on rejected issuance")
	})

	s.Run("rejects second issuance for the same document", func() {
		doc := s.newDocument(domain.DocumentStatusPending)
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
		s.Require().NoError(s.store.TransitionToIssued(s.ctx, doc.ID, s.newCertificate(doc.ID)))

		err := s.store.TransitionToIssued(s.ctx, doc.ID, s.newCertificate(doc.ID))
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("returns ErrNotFound for unknown document", func() {
		cert := s.newCertificate(domain.NewDocumentID())
		err := s.store.TransitionToIssued(s.ctx, cert.DocumentID, cert)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for unknown certificate", func() {
		_, err := s.store.GetCertificate(s.ctx, domain.NewCertificateID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
