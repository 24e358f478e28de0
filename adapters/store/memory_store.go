package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/tollgate/core"
)

// MemoryStore is an in-memory implementation of the SessionStore interface.
// Sessions do not survive a restart.
type MemoryStore struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
	}
}

// Create stores a session unless its token is already taken
func (s *MemoryStore) Create(ctx context.Context, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.Token]; exists {
		return core.ErrTokenExists
	}
	s.sessions[session.Token] = session

	return nil
}

// Get returns the session stored for a token
func (s *MemoryStore) Get(ctx context.Context, token string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrTokenNotFound
	}

	return session, nil
}

// Delete removes a session
func (s *MemoryStore) Delete(ctx context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrTokenNotFound
	}
	delete(s.sessions, token)

	return session, nil
}

// ListExpired returns the tokens of sessions expiring at or before now
func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []string
	for token, session := range s.sessions {
		if session.Expired(now) {
			tokens = append(tokens, token)
		}
	}

	return tokens, nil
}

// Len returns the number of stored sessions, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Close drops all sessions
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]core.Session)
	return nil
}
