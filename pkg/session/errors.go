package session

import "errors"

var (
	// ErrNotFound is returned when a session handle does not resolve to a
	// live session, either because it never existed or because it expired.
	ErrNotFound = errors.New("session not found or expired")

	// ErrInvalidHandle is returned for malformed session handles.
	ErrInvalidHandle = errors.New("invalid session handle")

	// ErrTooManyTurns is returned when a session reaches its turn cap.
	ErrTooManyTurns = errors.New("session reached maximum number of turns")
)
