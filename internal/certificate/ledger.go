package certificate

import (
	"sync"

	"healthcert/internal/domain"
)

// OutcomeLedger remembers the latest verification outcome per document.
// Issuance is gated on it: a document may only be issued while its most
// recent verification run ended verified. A failed run overwrites a prior
// verified outcome, so re-running verification is always decisive.
type OutcomeLedger struct {
	mu       sync.RWMutex
	outcomes map[domain.DocumentID]domain.RunOutcome
}

func NewOutcomeLedger() *OutcomeLedger {
	return &OutcomeLedger{outcomes: make(map[domain.DocumentID]domain.RunOutcome)}
}

// Record stores the outcome of a finished verification run.
func (l *OutcomeLedger) Record(id domain.DocumentID, outcome domain.RunOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes[id] = outcome
}

// Verified reports whether the document's latest run ended verified.
func (l *OutcomeLedger) Verified(id domain.DocumentID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.outcomes[id] == domain.OutcomeVerified
}
