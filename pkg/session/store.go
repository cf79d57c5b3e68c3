package session

import "sync"

// Store holds live sessions keyed by handle. Backends only need keyed
// consistency; turn ordering comes from the Manager's per-handle locks.
type Store interface {
	Put(s *Session)
	Get(handle string) (*Session, bool)
	Delete(handle string)
	Snapshot() []*Session
	Len() int
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates the in-memory Store backend.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[string]*Session),
	}
}

func (m *memoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Handle] = s
}

func (m *memoryStore) Get(handle string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[handle]
	return s, ok
}

func (m *memoryStore) Delete(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, handle)
}

func (m *memoryStore) Snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
