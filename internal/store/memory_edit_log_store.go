package store

import (
	"context"
	"sync"

	"github.com/dunamismax/pixeledit/internal/domain"
)

type MemoryEditLogStore struct {
	mu      sync.RWMutex
	entries []domain.EditLog
}

func NewMemoryEditLogStore() *MemoryEditLogStore {
	return &MemoryEditLogStore{}
}

func (s *MemoryEditLogStore) CreateEditLog(_ context.Context, entry domain.EditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.SessionID == entry.SessionID {
			return ErrEditLogExists
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

// ListByMedia returns the most recent saves for mediaID, newest first.
func (s *MemoryEditLogStore) ListByMedia(_ context.Context, mediaID string, limit int) ([]domain.EditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EditLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].MediaID != mediaID {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
