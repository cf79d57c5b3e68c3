package session

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m := NewManager(Config{
		TTL:    ttl,
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	t.Cleanup(func() { m.Close() })

	return m
}

func activateTestSession(t *testing.T, m *Manager) string {
	t.Helper()

	handle, err := m.Reserve("report.pdf")
	require.NoError(t, err)
	require.NoError(t, m.Activate(handle, nil))

	return handle
}

func TestManager_ReserveAndActivate(t *testing.T) {
	m := createTestManager(t, time.Minute)

	handle, err := m.Reserve("report.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	// Reserved but not activated sessions are not resolvable
	_, _, err = m.Acquire(handle)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Activate(handle, nil))

	s, release, err := m.Acquire(handle)
	require.NoError(t, err)
	defer release()

	assert.Equal(t, StateActive, s.State)
	assert.Equal(t, "report.pdf", s.Filename)
	assert.Empty(t, s.History)
}

func TestManager_Acquire_UnknownHandle(t *testing.T) {
	m := createTestManager(t, time.Minute)

	_, _, err := m.Acquire("aaaaaaaaaaaaaaaaaaaaa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Acquire_InvalidHandle(t *testing.T) {
	m := createTestManager(t, time.Minute)

	tests := []struct {
		name   string
		handle string
	}{
		{"empty", ""},
		{"path traversal", "../etc/passwd"},
		{"null byte", "abc\x00def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Acquire(tt.handle)
			assert.ErrorIs(t, err, ErrInvalidHandle)
		})
	}
}

func TestManager_Acquire_Expired(t *testing.T) {
	m := createTestManager(t, 10*time.Millisecond)

	handle := activateTestSession(t, m)
	time.Sleep(20 * time.Millisecond)

	_, _, err := m.Acquire(handle)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManager_AppendTurn_Ordering(t *testing.T) {
	m := createTestManager(t, time.Minute)
	handle := activateTestSession(t, m)

	s, release, err := m.Acquire(handle)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.AppendTurn(s, Turn{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
		}))
	}

	history := m.HistorySnapshot(s)
	release()

	require.Len(t, history, 3)
	for i, turn := range history {
		assert.Equal(t, fmt.Sprintf("question %d", i), turn.Question)
		assert.False(t, turn.Timestamp.IsZero())
	}
}

func TestManager_AppendTurn_MaxTurns(t *testing.T) {
	m := NewManager(Config{
		TTL:      time.Minute,
		MaxTurns: 1,
		Logger:   zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	defer m.Close()

	handle, err := m.Reserve("notes.txt")
	require.NoError(t, err)
	require.NoError(t, m.Activate(handle, nil))

	s, release, err := m.Acquire(handle)
	require.NoError(t, err)
	defer release()

	require.NoError(t, m.AppendTurn(s, Turn{Question: "q", Answer: "a"}))
	assert.ErrorIs(t, m.AppendTurn(s, Turn{Question: "q2", Answer: "a2"}), ErrTooManyTurns)
}

func TestManager_HistorySnapshot_Isolated(t *testing.T) {
	m := createTestManager(t, time.Minute)
	handle := activateTestSession(t, m)

	s, release, err := m.Acquire(handle)
	require.NoError(t, err)
	defer release()

	require.NoError(t, m.AppendTurn(s, Turn{Question: "q", Answer: "a"}))

	history := m.HistorySnapshot(s)
	history[0].Answer = "mutated"

	assert.Equal(t, "a", s.History[0].Answer)
}

func TestManager_Sweep_OnReserve(t *testing.T) {
	m := createTestManager(t, 10*time.Millisecond)

	activateTestSession(t, m)
	activateTestSession(t, m)
	require.Equal(t, 2, m.Len())

	time.Sleep(20 * time.Millisecond)

	// Reserving a new session reclaims the expired ones
	_, err := m.Reserve("new.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Abort(t *testing.T) {
	m := createTestManager(t, time.Minute)

	handle, err := m.Reserve("broken.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	m.Abort(handle)
	assert.Equal(t, 0, m.Len())

	_, _, err = m.Acquire(handle)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Acquire_SerializesPerHandle(t *testing.T) {
	m := createTestManager(t, time.Minute)
	handle := activateTestSession(t, m)

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()

			s, release, err := m.Acquire(handle)
			if err != nil {
				return
			}
			defer release()

			m.AppendTurn(s, Turn{
				Question: fmt.Sprintf("question %d", i),
				Answer:   fmt.Sprintf("answer %d", i),
			})
		}(i)
	}

	wg.Wait()

	s, release, err := m.Acquire(handle)
	require.NoError(t, err)
	defer release()

	assert.Len(t, s.History, workers)
}

func TestManager_Sweep_ConcurrentWithAcquire(t *testing.T) {
	m := createTestManager(t, time.Minute)
	handle := activateTestSession(t, m)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			s, release, err := m.Acquire(handle)
			if err != nil {
				return
			}
			_ = s.LastAccess
			release()
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			m.Sweep()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()

	_, release, err := m.Acquire(handle)
	require.NoError(t, err)
	release()
}

func TestManager_Acquire_UnknownHandleLeavesNoLock(t *testing.T) {
	m := createTestManager(t, time.Minute)

	for i := 0; i < 100; i++ {
		_, _, err := m.Acquire(fmt.Sprintf("no-such-handle-%d", i))
		require.ErrorIs(t, err, ErrNotFound)
	}

	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	assert.Empty(t, m.handleLocks)
}
