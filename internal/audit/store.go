package audit

import (
	"context"
	"sync"
)

// Store is the audit sink. Append-only; there is no delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByToken(ctx context.Context, token string) ([]Event, error)
}

// InMemoryStore keeps events per token. Suitable for development and tests.
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
	s.events[event.Token] = append(s.events[event.Token], event)
	return nil
}

func (s *InMemoryStore) ListByToken(_ context.Context, token string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[token]...), nil
}
