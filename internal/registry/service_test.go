package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcert/internal/audit"
	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
)

type capturingAudit struct {
	events []audit.Event
}

func (c *capturingAudit) Emit(_ context.Context, event audit.Event) error {
	c.events = append(c.events, event)
	return nil
}

// countingCache records hits and misses to observe read-through behavior.
type countingCache struct {
	entries map[domain.CertificateID]IssuedCertificate
	gets    int
	sets    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[domain.CertificateID]IssuedCertificate)}
}

func (c *countingCache) Get(_ context.Context, id domain.CertificateID) (IssuedCertificate, bool) {
	c.gets++
	cert, ok := c.entries[id]
	return cert, ok
}

func (c *countingCache) Set(_ context.Context, cert IssuedCertificate) {
	c.sets++
	c.entries[cert.ID] = cert
}

func pendingDocument(t *testing.T, svc *Service) domain.Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), domain.Document{
		Type:   domain.DocumentTypeHealthCheckup,
		Name:   "Annual Checkup",
		Status: domain.DocumentStatusPending,
	})
	require.NoError(t, err)
	return doc
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc := New(NewInMemoryStore())

	t.Run("defaults to available status and mints identifiers", func(t *testing.T) {
		doc, err := svc.Create(ctx, domain.Document{
			Type: domain.DocumentTypePrescription,
			Name: "Prescription",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusAvailable, doc.Status)
		assert.False(t, doc.ID.IsEmpty())
		assert.False(t, doc.CreatedAt.IsZero())
	})

	t.Run("rejects unsupported document type", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.Document{Type: "passport", Name: "Passport"})
		assert.True(t, dErrors.Is(err, dErrors.CodeUnsupportedDocumentType))
	})

	t.Run("rejects creation as issued", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.Document{
			Type:   domain.DocumentTypeVaccination,
			Name:   "Vaccination",
			Status: domain.DocumentStatusIssued,
		})
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects duplicate identifier", func(t *testing.T) {
		doc := domain.Document{
			ID:   domain.DocumentID("doc-42"),
			Type: domain.DocumentTypeBirthCertificate,
			Name: "Birth Certificate",
		}
		_, err := svc.Create(ctx, doc)
		require.NoError(t, err)
		_, err = svc.Create(ctx, doc)
		assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
	})
}

func TestServiceRequestAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("moves an available document to pending and audits it", func(t *testing.T) {
		trail := &capturingAudit{}
		svc := New(NewInMemoryStore(), WithAuditPublisher(trail))

		doc, err := svc.Create(ctx, domain.Document{
			Type: domain.DocumentTypeGrowthChart,
			Name: "Growth Chart",
		})
		require.NoError(t, err)

		updated, err := svc.RequestAvailable(ctx, doc.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.DocumentStatusPending, updated.Status)
		require.Len(t, trail.events, 1)
		assert.Equal(t, audit.KindDocumentRequested, trail.events[0].Kind)
		assert.Equal(t, doc.ID.String(), trail.events[0].SubjectID)
	})

	t.Run("rejects requesting a pending document", func(t *testing.T) {
		svc := New(NewInMemoryStore())
		doc := pendingDocument(t, svc)

		_, err := svc.RequestAvailable(ctx, doc.ID)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition))
	})

	t.Run("rejects requesting an unknown document", func(t *testing.T) {
		svc := New(NewInMemoryStore())
		_, err := svc.RequestAvailable(ctx, domain.NewDocumentID())
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestServiceTransitionToIssued(t *testing.T) {
	ctx := context.Background()

	newCert := func(docID domain.DocumentID) IssuedCertificate {
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

	t.Run("issues a pending document exactly once", func(t *testing.T) {
		svc := New(NewInMemoryStore())
		doc := pendingDocument(t, svc)
		cert := newCert(doc.ID)

		require.NoError(t, svc.TransitionToIssued(ctx, doc.ID, cert))

		issued, err := svc.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusIssued, issued.Status)

		err = svc.TransitionToIssued(ctx, doc.ID, newCert(doc.ID))
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition))
	})

	t.Run("warms the certificate cache on issuance", func(t *testing.T) {
		cache := newCountingCache()
		svc := New(NewInMemoryStore(), WithCache(cache))
		doc := pendingDocument(t, svc)
		cert := newCert(doc.ID)

		require.NoError(t, svc.TransitionToIssued(ctx, doc.ID, cert))
		assert.Equal(t, 1, cache.sets)

		got, err := svc.GetCertificate(ctx, cert.ID)
		require.NoError(t, err)
		assert.Equal(t, cert.ID, got.ID)
		assert.Equal(t, 1, cache.gets)
		assert.Equal(t, 1, cache.sets, "a cache hit must not rewrite the entry")
	})
}

func TestServiceGetCertificate(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the store and backfills the cache", func(t *testing.T) {
		store := NewInMemoryStore()
		cache := newCountingCache()
		svc := New(store, WithCache(cache))
		doc := pendingDocument(t, svc)

		cert := IssuedCertificate{
			Certificate: domain.Certificate{
				ID:           domain.NewCertificateID(),
				DocumentID:   doc.ID,
				IssuedAt:     time.Now().UTC(),
				IssuedBy:     "healthcert-authority",
				SecurityTier: domain.TierGovernment,
			},
			ReferencePayload: "HC1.payload",
		}
		require.NoError(t, store.TransitionToIssued(ctx, doc.ID, cert))

		got, err := svc.GetCertificate(ctx, cert.ID)
		require.NoError(t, err)
		assert.Equal(t, cert.ID, got.ID)
		assert.Equal(t, 1, cache.sets, "store hit must backfill the cache")
	})

	t.Run("returns not found for unknown certificate", func(t *testing.T) {
		svc := New(NewInMemoryStore())
		_, err := svc.GetCertificate(ctx, domain.NewCertificateID())
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}
