package llm

import "sync"

// RateLimiter enforces a minimum interval between model calls measured in
// simulated mission time, not wall time, so a paused or time-accelerated
// mission is limited consistently.
type RateLimiter struct {
	mu       sync.Mutex
	interval float64
	last     float64
	called   bool
}

const defaultMinCallInterval = 10.0 // mission seconds

// NewRateLimiter builds a limiter with the given minimum interval in mission
// seconds. Non-positive intervals fall back to the default.
func NewRateLimiter(interval float64) *RateLimiter {
	if interval <= 0 {
		interval = defaultMinCallInterval
	}
	return &RateLimiter{interval: interval}
}

// Allow reports whether a call may proceed at mission time t and, when it
// may, records t as the last call time.
func (r *RateLimiter) Allow(t float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.called && t-r.last < r.interval {
		return false
	}
	r.last = t
	r.called = true
	return true
}

// Reset forgets the last call so the next Allow succeeds regardless of t.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.called = false
	r.last = 0
}
