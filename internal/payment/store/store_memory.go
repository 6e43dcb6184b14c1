package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local EventStore for development and tests.
type InMemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewInMemory constructs an empty in-memory event store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// MarkProcessed records the event ID, pruning expired entries as it goes.
func (s *InMemoryStore) MarkProcessed(_ context.Context, eventID string, retention time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, id)
		}
	}

	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = now.Add(retention)
	return true, nil
}
