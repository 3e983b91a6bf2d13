package audit

import (
	"context"
	"log/slog"
)

// Mirror is an optional secondary sink (e.g. Kafka) that receives every event
// the worker persists.
type Mirror interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from the publisher inbox and persists them.
// Store failures are logged and skipped so one bad event cannot stall the
// trail; mirror failures are likewise non-fatal.
type Worker struct {
	store  Store
	inbox  <-chan Event
	mirror Mirror
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// WithMirror attaches a secondary sink.
func (w *Worker) WithMirror(m Mirror) *Worker {
	w.mirror = m
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to append audit event",
					"kind", event.Kind,
					"subject_id", event.SubjectID,
					"error", err.Error(),
				)
				continue
			}
			if w.mirror != nil {
				if err := w.mirror.Publish(ctx, event); err != nil {
					w.logger.WarnContext(ctx, "failed to mirror audit event",
						"kind", event.Kind,
						"subject_id", event.SubjectID,
						"error", err.Error(),
					)
				}
			}
		}
	}
}
