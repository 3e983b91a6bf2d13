package domain

import (
	"time"

	dErrors "healthcert/pkg/domain-errors"
)

// Certificate is the durable artifact produced when a document passes
// verification. Immutable once created; referenced by exactly one document.
type Certificate struct {
	ID               CertificateID `json:"id"`
	DocumentID       DocumentID    `json:"document_id"`
	IssuedAt         time.Time     `json:"issued_at"`
	IssuedBy         string        `json:"issued_by"`
	SignaturePayload string        `json:"signature_payload"`
	SecurityTier     SecurityTier  `json:"security_tier"`
}

// SubjectType names what a reference code points at.
type SubjectType string

const (
	SubjectDocument    SubjectType = "document"
	SubjectCertificate SubjectType = "certificate"
)

func (t SubjectType) IsValid() bool {
	return t == SubjectDocument || t == SubjectCertificate
}

// ParseSubjectType constructs a SubjectType from external input.
func ParseSubjectType(s string) (SubjectType, error) {
	t := SubjectType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown subject type %q", s)
	}
	return t, nil
}

// ReferenceCode is an opaque, decodable payload identifying a document or
// certificate for out-of-band lookup (e.g. a scannable code).
type ReferenceCode struct {
	Payload     string      `json:"payload"`
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"`
}
