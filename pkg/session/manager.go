package session

import (
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"careassist/internal/observability"
	"careassist/pkg/knowledge"
)

// DefaultTTL is the idle lifetime of a session.
const DefaultTTL = 30 * time.Minute

// Config configures a Manager.
type Config struct {
	TTL      time.Duration
	MaxTurns int
	Store    Store
	Logger   zerolog.Logger
}

// Manager owns all live sessions. Access to a session is serialized per
// handle, so concurrent requests against the same conversation observe a
// consistent history. Expired sessions are reclaimed opportunistically
// whenever a new session is reserved.
type Manager struct {
	ttl      time.Duration
	maxTurns int
	store    Store
	logger   zerolog.Logger

	locksMu     sync.Mutex
	handleLocks map[string]*sync.Mutex
}

// NewManager creates a session manager. A nil Store means the in-memory
// backend.
func NewManager(cfg Config) *Manager {
	observability.EnsureRegistered()

	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	return &Manager{
		ttl:         cfg.TTL,
		maxTurns:    cfg.MaxTurns,
		store:       cfg.Store,
		logger:      cfg.Logger,
		handleLocks: make(map[string]*sync.Mutex),
	}
}

func validateHandle(handle string) error {
	if handle == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHandle)
	}
	if len(handle) > 64 {
		return fmt.Errorf("%w: too long", ErrInvalidHandle)
	}
	for _, r := range handle {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: illegal character", ErrInvalidHandle)
		}
	}
	return nil
}

func (m *Manager) handleLock(handle string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, ok := m.handleLocks[handle]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.handleLocks[handle] = lock
	return lock
}

func (m *Manager) releaseHandleLock(handle string) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.handleLocks, handle)
}

// Reserve sweeps expired sessions and registers a new session in the
// init state. The session is not resolvable by handle until Activate is
// called with its grounding context.
func (m *Manager) Reserve(filename string) (string, error) {
	m.Sweep()

	handle, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate session handle: %w", err)
	}

	now := time.Now()
	m.store.Put(&Session{
		Handle:     handle,
		State:      StateInit,
		Filename:   filename,
		CreatedAt:  now,
		LastAccess: now,
	})

	m.logger.Debug().Str("handle", handle).Str("filename", filename).Msg("Session reserved")

	return handle, nil
}

// Activate attaches the built context to a reserved session and moves it
// to the active state.
func (m *Manager) Activate(handle string, kc *knowledge.Context) error {
	lock := m.handleLock(handle)
	lock.Lock()
	defer lock.Unlock()

	s, ok := m.store.Get(handle)
	if !ok {
		return ErrNotFound
	}

	s.Context = kc
	s.State = StateActive
	s.LastAccess = time.Now()

	kind := "document"
	if kc != nil {
		kind = string(kc.Kind)
	}
	observability.RecordSessionCreated(kind)
	observability.SetActiveSessions(m.store.Len())

	m.logger.Info().Str("handle", handle).Str("kind", kind).Msg("Session activated")

	return nil
}

// Abort removes a reserved session whose context build failed.
func (m *Manager) Abort(handle string) {
	lock := m.handleLock(handle)
	lock.Lock()
	m.store.Delete(handle)
	lock.Unlock()
	m.releaseHandleLock(handle)
}

// Acquire resolves handle to a live session and locks it for the caller.
// The returned release function must be called when the caller is done
// reading or mutating it. Callers making slow external calls should
// release first and re-acquire to append, so the session is not held
// across outbound I/O.
func (m *Manager) Acquire(handle string) (*Session, func(), error) {
	if err := validateHandle(handle); err != nil {
		return nil, nil, err
	}

	lock := m.handleLock(handle)
	lock.Lock()

	s, ok := m.store.Get(handle)
	if !ok {
		lock.Unlock()
		m.releaseHandleLock(handle)
		return nil, nil, ErrNotFound
	}
	if s.State == StateActive && s.expired(m.ttl, time.Now()) {
		s.State = StateExpired
		m.store.Delete(handle)
		m.reclaim(s)

		lock.Unlock()
		m.releaseHandleLock(handle)
		return nil, nil, ErrNotFound
	}
	if s.State != StateActive {
		lock.Unlock()
		return nil, nil, ErrNotFound
	}
	s.LastAccess = time.Now()

	return s, lock.Unlock, nil
}

// AppendTurn records a completed exchange on s. The caller must hold the
// session via Acquire. Failed turns are never recorded.
func (m *Manager) AppendTurn(s *Session, turn Turn) error {
	if m.maxTurns > 0 && len(s.History) >= m.maxTurns {
		return ErrTooManyTurns
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.History = append(s.History, turn)
	return nil
}

// HistorySnapshot returns a copy of the session history. The caller must
// hold the session via Acquire.
func (m *Manager) HistorySnapshot(s *Session) []Turn {
	history := make([]Turn, len(s.History))
	copy(history, s.History)
	return history
}

// Sweep reclaims every expired session and returns how many were
// removed. It runs opportunistically on each Reserve rather than on a
// timer, so an idle process holds no background goroutine.
func (m *Manager) Sweep() int {
	now := time.Now()
	swept := 0

	for _, s := range m.store.Snapshot() {
		// State and LastAccess may only be read under the handle lock,
		// Acquire touches them concurrently
		lock := m.handleLock(s.Handle)
		lock.Lock()
		removed := false
		if s.State == StateActive && s.expired(m.ttl, now) {
			s.State = StateExpired
			m.store.Delete(s.Handle)
			m.reclaim(s)
			removed = true
			swept++
		}
		lock.Unlock()
		if removed {
			m.releaseHandleLock(s.Handle)
		}
	}

	if swept > 0 {
		observability.RecordSessionsSwept(swept)
		observability.SetActiveSessions(m.store.Len())
		m.logger.Info().Int("count", swept).Msg("Swept expired sessions")
	}

	return swept
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.store.Len()
}

func (m *Manager) reclaim(s *Session) {
	if s.Context != nil {
		if err := s.Context.Close(); err != nil {
			m.logger.Warn().Err(err).Str("handle", s.Handle).Msg("Failed to release session context")
		}
	}
}

// Close reclaims every session regardless of age.
func (m *Manager) Close() error {
	for _, s := range m.store.Snapshot() {
		m.store.Delete(s.Handle)
		m.reclaim(s)
	}

	m.locksMu.Lock()
	m.handleLocks = make(map[string]*sync.Mutex)
	m.locksMu.Unlock()

	observability.SetActiveSessions(0)

	return nil
}
