package session

import (
	"time"

	"careassist/pkg/knowledge"
)

// State tracks where a session is in its lifecycle.
type State string

const (
	// StateInit means the session exists but its context is still being
	// built. Sessions in this state are not resolvable by handle.
	StateInit State = "init"

	// StateActive means the session accepts follow-up questions.
	StateActive State = "active"

	// StateExpired means the idle deadline passed. Expired sessions are
	// indistinguishable from unknown handles to callers.
	StateExpired State = "expired"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the grounding context and conversation history for one
// uploaded artifact. Fields are owned by the Manager; callers only see
// snapshots.
type Session struct {
	Handle     string
	State      State
	Filename   string
	Context    *knowledge.Context
	History    []Turn
	CreatedAt  time.Time
	LastAccess time.Time
}

func (s *Session) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastAccess) > ttl
}
