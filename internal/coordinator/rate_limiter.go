package coordinator

import (
	"sync"
	"time"
)

// RateLimiter bounds chat-message throughput per connection with a
// minute-based sliding window. Signaling traffic is never limited; only the
// chat path, which fans out to the whole room and feeds the persistence
// buffer, goes through it.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int // messages per minute, 0 disables limiting
	windows map[string]*limitWindow
}

type limitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit messages per minute per
// connection.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		windows: make(map[string]*limitWindow),
	}
}

// Allow reports whether the connection may send another chat message now.
func (rl *RateLimiter) Allow(connectionID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, exists := rl.windows[connectionID]
	if !exists {
		rl.windows[connectionID] = &limitWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(w.windowStart) >= time.Minute {
		w.count = 1
		w.windowStart = now
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// Remove drops a connection's window state. Wired into the disconnect path
// so stale entries don't accumulate.
func (rl *RateLimiter) Remove(connectionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.windows, connectionID)
}
