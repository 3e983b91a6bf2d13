package domain

import (
	"github.com/google/uuid"

	dErrors "healthcert/pkg/domain-errors"
)

// Typed identifiers keep document, certificate, and run IDs from being mixed
// up at call sites. Construct via New* for fresh IDs or Parse* at trust
// boundaries; direct casting bypasses validation.
type (
	DocumentID        string
	CertificateID     string
	ScanJobID         string
	VerificationRunID string
)

func NewDocumentID() DocumentID               { return DocumentID(uuid.NewString()) }
func NewCertificateID() CertificateID         { return CertificateID(uuid.NewString()) }
func NewScanJobID() ScanJobID                 { return ScanJobID(uuid.NewString()) }
func NewVerificationRunID() VerificationRunID { return VerificationRunID(uuid.NewString()) }

func (id DocumentID) String() string        { return string(id) }
func (id CertificateID) String() string     { return string(id) }
func (id ScanJobID) String() string         { return string(id) }
func (id VerificationRunID) String() string { return string(id) }

func (id DocumentID) IsEmpty() bool    { return id == "" }
func (id CertificateID) IsEmpty() bool { return id == "" }

// ParseDocumentID validates external input as a document ID. Documents created
// by collaborators may carry non-UUID ids (e.g. "doc-42"), so the only
// requirement is that the id is non-empty.
func ParseDocumentID(s string) (DocumentID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document id cannot be empty")
	}
	return DocumentID(s), nil
}

// ParseCertificateID validates external input as a certificate ID.
func ParseCertificateID(s string) (CertificateID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate id cannot be empty")
	}
	return CertificateID(s), nil
}

// ParseScanJobID validates external input as a scan job ID. Scan jobs are
// always minted by this service, so the UUID shape is enforced.
func ParseScanJobID(s string) (ScanJobID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "scan job id must be a UUID")
	}
	return ScanJobID(s), nil
}

// ParseVerificationRunID validates external input as a verification run ID.
func ParseVerificationRunID(s string) (VerificationRunID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification run id must be a UUID")
	}
	return VerificationRunID(s), nil
}
