package store

import (
	"sync"
	"time"

	"github.com/dunamismax/pixeledit/internal/editor"
)

// MemorySessionStore keeps open editor sessions in process. Sessions idle
// for longer than ttl are closed and removed by Sweep.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*editor.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*editor.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Put(session *editor.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *MemorySessionStore) Get(id string) (*editor.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete closes and removes the session.
func (s *MemorySessionStore) Delete(id string) (*editor.Session, bool) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.Close()
	}
	return session, ok
}

func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *MemorySessionStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*editor.Session
	for id, session := range s.sessions {
		if session.IdleSince().Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Close()
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until stop is closed.
func (s *MemorySessionStore) RunSweeper(interval time.Duration, stop <-chan struct{}, onSweep func(removed int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 && onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
