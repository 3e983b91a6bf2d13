package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	KindScanCompleted        Kind = "scan.completed"
	KindScanCancelled        Kind = "scan.cancelled"
	KindVerificationVerified Kind = "verification.verified"
	KindVerificationFailed   Kind = "verification.failed"
	KindCertificateIssued    Kind = "certificate.issued"
	KindDocumentRequested    Kind = "document.requested"
)

// Event is one append-only audit trail entry. SubjectID is the document,
// certificate, or job the event concerns.
type Event struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	SubjectID string            `json:"subject_id"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(kind Kind, subjectID string, detail map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
}
