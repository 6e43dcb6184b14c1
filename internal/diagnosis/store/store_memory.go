package store

import (
	"context"
	"sync"
	"time"

	"akashic/internal/diagnosis"
	"akashic/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map. Used for development and unit tests;
// it intentionally favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]diagnosis.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]diagnosis.Record)}
}

func (s *InMemoryStore) Put(_ context.Context, record diagnosis.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Token] = record
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, token string) (diagnosis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[token]; ok {
		return record, nil
	}
	return diagnosis.Record{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SetUnlocked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[token]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if record.Unlocked {
		return false, nil
	}
	record.Unlocked = true
	record.UpdatedAt = time.Now()
	s.records[token] = record
	return true, nil
}
