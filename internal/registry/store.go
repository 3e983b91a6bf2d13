package registry

import (
	"context"

	"healthcert/internal/domain"
)

// IssuedCertificate is a certificate as persisted: the domain record plus the
// scannable reference payload generated at issuance.
type IssuedCertificate struct {
	domain.Certificate
	ReferencePayload string `json:"reference_payload"`
}

// Store is the persistence boundary for documents and certificates. Stores
// return sentinel errors; the service layer translates them into domain
// errors.
//
// Implementations must serialize state transitions per document so that
// `issued` is reached at most once, and must make TransitionToIssued atomic:
// either the certificate is recorded and the document flips to issued, or
// neither happens.
type Store interface {
	CreateDocument(ctx context.Context, doc domain.Document) error
	GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	// ListDocumentsByStatus returns all documents when status is nil.
	ListDocumentsByStatus(ctx context.Context, status *domain.DocumentStatus) ([]domain.Document, error)
	// SetDocumentStatus is a compare-and-swap on the document's status.
	// Returns sentinel.ErrInvalidState when the current status is not `from`.
	SetDocumentStatus(ctx context.Context, id domain.DocumentID, from, to domain.DocumentStatus) error
	// TransitionToIssued atomically flips a pending document to issued and
	// records its certificate.
	TransitionToIssued(ctx context.Context, id domain.DocumentID, cert IssuedCertificate) error
	GetCertificate(ctx context.Context, id domain.CertificateID) (IssuedCertificate, error)
}
