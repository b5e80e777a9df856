package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/tonehq/tonectl/pkg/types"
)

// Ensure MemoryStore implements SessionStore
var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory SessionStore for tests and one-shot runs
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*types.Session)}
}

func (m *MemoryStore) GetSession(profile string) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[profile]
	if !ok {
		return nil, fmt.Errorf("profile '%s': %w", profile, ErrSessionNotFound)
	}
	return copySession(s), nil
}

func (m *MemoryStore) PutSession(session *types.Session) error {
	if session == nil || session.Profile == "" {
		return fmt.Errorf("session profile cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := copySession(session)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	m.sessions[session.Profile] = stored
	return nil
}

func (m *MemoryStore) DeleteSession(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[profile]; !ok {
		return fmt.Errorf("profile '%s': %w", profile, ErrSessionNotFound)
	}
	delete(m.sessions, profile)
	return nil
}

func (m *MemoryStore) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.sessions)
}

func (m *MemoryStore) SessionExists(profile string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[profile]
	return ok
}

// Metadata summarizes every stored session
func (m *MemoryStore) Metadata() map[string]types.SessionMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return metadataOf(m.sessions)
}
