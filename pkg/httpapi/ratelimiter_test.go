package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"))
	}
	assert.False(t, rl.Allow("1.2.3.4"))

	// A different client has its own budget
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	assert.Equal(t, 0, rl.RetryAfter("1.2.3.4"))

	rl.Allow("1.2.3.4")
	assert.False(t, rl.Allow("1.2.3.4"))

	retry := rl.RetryAfter("1.2.3.4")
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(5)
	defer rl.Stop()

	rl.Allow("1.2.3.4")
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.requests["1.2.3.4"], 1)
}
