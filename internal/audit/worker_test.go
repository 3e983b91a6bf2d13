package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestPublisherFillsTimestamp(t *testing.T) {
	p := NewPublisher(4, testLogger())
	if err := p.Emit(context.Background(), Event{Kind: KindScanCompleted, SubjectID: "job-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case ev := <-p.Inbox():
		if ev.Timestamp.IsZero() {
			t.Fatalf("expected timestamp to be filled")
		}
	default:
		t.Fatalf("expected event in inbox")
	}
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher(1, testLogger())
	ctx := context.Background()

	_ = p.Emit(ctx, NewEvent(KindScanCompleted, "job-1", nil))
	// Inbox full; this must not block.
	done := make(chan struct{})
	go func() {
		_ = p.Emit(ctx, NewEvent(KindScanCompleted, "job-2", nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Emit blocked on a full inbox")
	}
}

func TestWorkerPersistsEvents(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(8, testLogger())
	w := NewWorker(store, p.Inbox(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	ev := NewEvent(KindCertificateIssued, "doc-42", map[string]string{"tier": "enhanced"})
	if err := p.Emit(ctx, ev); err != nil {
		t.Fatalf("emit: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		events, err := store.ListBySubject(ctx, "doc-42")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(events) == 1 {
			if events[0].Kind != KindCertificateIssued {
				t.Fatalf("unexpected kind %s", events[0].Kind)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not persist event in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
