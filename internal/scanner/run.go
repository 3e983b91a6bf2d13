package scanner

import (
	"context"
	"sync"

	"healthcert/internal/domain"
)

// Event is one emission from a scan run: either a progress tick or the
// terminal result/error. Exactly one terminal event is delivered per run.
type Event struct {
	Progress *domain.ScanProgress
	Result   *domain.ScanResult
	Err      error
}

// Terminal reports whether this event ends the run.
func (e Event) Terminal() bool { return e.Result != nil || e.Err != nil }

// Run is the caller's handle on one scan job. Events are delivered over a
// bounded buffer with latest-wins semantics: a slow consumer may miss
// intermediate ticks but always receives the terminal event. The channel is
// closed after the terminal event. Intended for a single consumer.
type Run struct {
	JobID domain.ScanJobID

	events chan Event
	cancel context.CancelFunc

	mu       sync.Mutex
	terminal *Event
}

func newRun(jobID domain.ScanJobID, buffer int, cancel context.CancelFunc) *Run {
	if buffer <= 0 {
		buffer = 1
	}
	return &Run{
		JobID:  jobID,
		events: make(chan Event, buffer),
		cancel: cancel,
	}
}

// Events is the stream of progress ticks ending in one terminal event.
func (r *Run) Events() <-chan Event { return r.events }

// Cancel stops the run at the next tick boundary. Partial progress is
// discarded; no result is emitted beyond the cancellation terminal event.
func (r *Run) Cancel() { r.cancel() }

// Terminal returns the terminal event once the run has ended, for consumers
// that attach after completion.
func (r *Run) Terminal() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal == nil {
		return Event{}, false
	}
	return *r.terminal, true
}

// publish delivers an event with latest-wins backpressure: when the buffer is
// full the oldest queued event is evicted. The terminal event therefore
// always lands in the buffer even if nobody is reading yet.
func (r *Run) publish(ev Event) {
	for {
		select {
		case r.events <- ev:
			return
		default:
			select {
			case <-r.events:
			default:
			}
		}
	}
}

// finish records and delivers the terminal event, then closes the stream.
func (r *Run) finish(ev Event) {
	r.mu.Lock()
	r.terminal = &ev
	r.mu.Unlock()
	r.publish(ev)
	close(r.events)
}
