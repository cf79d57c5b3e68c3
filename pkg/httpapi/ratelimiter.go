package httpapi

import (
	"sync"
	"time"
)

// RateLimiter implements per-client rate limiting with a sliding one
// minute window.
type RateLimiter struct {
	mu           sync.Mutex
	requests     map[string][]int64
	maxPerMinute int
	stopCleanup  chan struct{}
	stopOnce     sync.Once
}

const rateWindowMs = 60_000

// NewRateLimiter creates a rate limiter allowing maxPerMinute requests
// per client key.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		requests:     make(map[string][]int64),
		maxPerMinute: maxPerMinute,
		stopCleanup:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from key is within the limit and
// records it when it is.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	recent := pruneOld(rl.requests[key], now)

	if len(recent) >= rl.maxPerMinute {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// RetryAfter returns the seconds until a request from key would be
// admitted again.
func (rl *RateLimiter) RetryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.requests[key]
	if len(recent) == 0 {
		return 0
	}

	remainingMs := rateWindowMs - (time.Now().UnixMilli() - recent[0])
	if remainingMs < 0 {
		return 0
	}
	return int((remainingMs + 999) / 1000)
}

func pruneOld(timestamps []int64, now int64) []int64 {
	recent := timestamps[:0]
	for _, ts := range timestamps {
		if now-ts < rateWindowMs {
			recent = append(recent, ts)
		}
	}
	return recent
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	for key, timestamps := range rl.requests {
		recent := pruneOld(timestamps, now)
		if len(recent) == 0 {
			delete(rl.requests, key)
			continue
		}
		rl.requests[key] = recent
	}
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
