package oidc

import (
	"context"
	"fmt"
	"sync"
)

// SessionStorage is an external collaborator that persists a Client's current
// Session across calls (an http session store, an encrypted cookie, etc).
//
// Implementations must be concurrently safe.
type SessionStorage interface {
	// Load returns the stored session.  It returns ErrNotFound when nothing
	// has been stored yet.
	Load(ctx context.Context) (*Session, error)

	// Save stores the session, replacing any previous one.
	Save(ctx context.Context, s *Session) error

	// Clear removes the stored session.
	Clear(ctx context.Context) error
}

// MemoryStorage is an in-memory SessionStorage.  It is concurrently safe.
type MemoryStorage struct {
	mu      sync.RWMutex
	session *Session
}

// Load implements SessionStorage.Load
func (m *MemoryStorage) Load(ctx context.Context) (*Session, error) {
	const op = "MemoryStorage.Load"
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, fmt.Errorf("%s: no session stored: %w", op, ErrNotFound)
	}
	return m.session, nil
}

// Save implements SessionStorage.Save
func (m *MemoryStorage) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

// Clear implements SessionStorage.Clear
func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
