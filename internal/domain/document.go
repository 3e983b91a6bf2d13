package domain

import (
	"time"

	dErrors "healthcert/pkg/domain-errors"
)

// DocumentType identifies the kind of health document being certified.
// Invariant: the value must be one of the supported types.
//
// Usage: construct via ParseDocumentType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type DocumentType string

const (
	DocumentTypePrescription     DocumentType = "prescription"
	DocumentTypeBirthCertificate DocumentType = "birth-certificate"
	DocumentTypeMedicalRecord    DocumentType = "medical-record"
	DocumentTypeGrowthChart      DocumentType = "growth-chart"
	DocumentTypeVaccination      DocumentType = "vaccination"
	DocumentTypeHealthCheckup    DocumentType = "health-checkup"
)

// validDocumentTypes is the single source of truth for supported types.
var validDocumentTypes = map[DocumentType]bool{
	DocumentTypePrescription:     true,
	DocumentTypeBirthCertificate: true,
	DocumentTypeMedicalRecord:    true,
	DocumentTypeGrowthChart:      true,
	DocumentTypeVaccination:      true,
	DocumentTypeHealthCheckup:    true,
}

func (t DocumentType) IsValid() bool { return validDocumentTypes[t] }

// ParseDocumentType constructs a DocumentType from external input.
//
// Errors: returns CodeUnsupportedDocumentType when the value is empty or not
// in the allowlist; no other errors are expected.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeUnsupportedDocumentType, "unsupported document type %q", s)
	}
	return t, nil
}

// DocumentStatus tracks where a document sits in its certification lifecycle.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusAvailable DocumentStatus = "available"
	DocumentStatusIssued    DocumentStatus = "issued"
)

func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusAvailable, DocumentStatusIssued:
		return true
	}
	return false
}

// ParseDocumentStatus constructs a DocumentStatus from external input.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown document status %q", s)
	}
	return st, nil
}

// allowedTransitions is the single source of truth for lifecycle edges.
// issued is terminal: no outgoing edges, and it is reached at most once.
var allowedTransitions = map[DocumentStatus]map[DocumentStatus]bool{
	DocumentStatusAvailable: {DocumentStatusPending: true},
	DocumentStatusPending:   {DocumentStatusIssued: true},
}

// CanTransition reports whether moving from one status to another is a legal
// lifecycle edge.
func CanTransition(from, to DocumentStatus) bool {
	return allowedTransitions[from][to]
}

// Document is the system-of-record entry for a health document.
// Once issued, a document is immutable except for its expiry date.
type Document struct {
	ID          DocumentID     `json:"id"`
	Type        DocumentType   `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IssueDate   *time.Time     `json:"issue_date,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	Status      DocumentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}
