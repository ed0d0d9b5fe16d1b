package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks an advisory request budget over a rolling window. The
// window rolls over lazily on the next call rather than on a timer, so an
// idle limiter costs nothing. Callers check TryAcquire before issuing a
// request and skip or defer when it reports false; nothing here throttles
// the network by itself.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// New creates a limiter allowing limit requests per window
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// TryAcquire consumes one unit of budget if available
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Remaining returns the budget left in the current window, clamped at zero
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	remaining := l.limit - l.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// rollover resets the counter when the window has elapsed. Caller holds mu.
func (l *Limiter) rollover() {
	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
}
