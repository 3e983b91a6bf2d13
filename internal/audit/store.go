package audit

import (
	"context"
	"sync"
)

// Store is the persistence boundary for audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
}

// InMemoryStore keeps events in memory for tests and single-process runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SubjectID] = append(s.events[event.SubjectID], event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[subjectID]...), nil
}
