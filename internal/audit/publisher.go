package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher accepts audit events from services and hands them to the worker
// over a bounded inbox. Emit never blocks the calling request path: when the
// inbox is full the event is dropped and counted against the log, because the
// audit trail is an observability aid, not a transactional ledger.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with the given inbox capacity.
func NewPublisher(capacity int, logger *slog.Logger) *Publisher {
	if capacity <= 0 {
		capacity = 256
	}
	return &Publisher{
		inbox:  make(chan Event, capacity),
		logger: logger,
	}
}

// Emit enqueues an event, filling in the timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"kind", event.Kind,
				"subject_id", event.SubjectID,
			)
		}
	}
	return nil
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }
