package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can advance it deterministically, mirroring
// the injectable-clock pattern used by the signaling server's own
// connection-level limiter.
type Clock interface {
	Now() time.Time
}

// RealClock delegates to the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FakeClock is a manually-advanced clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SessionLimiter is a fixed-window counter for one synchronizer session,
// aggregated across every stream kind (pose, chat, signaling relay share one
// budget). One instance belongs to exactly one session; isolation across
// sessions falls out of never sharing an instance, not from any key space.
type SessionLimiter struct {
	clock       Clock
	limit       int
	window      time.Duration
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewSessionLimiter creates a fixed-window limiter with the given limit and
// window length.
func NewSessionLimiter(clock Clock, limit int, window time.Duration) *SessionLimiter {
	return &SessionLimiter{
		clock:       clock,
		limit:       limit,
		window:      window,
		windowStart: clock.Now(),
	}
}

// CheckAndRecord evaluates one attempt. The window resets lazily on the
// first call after it has elapsed; once a window is exhausted, every
// further call within it returns Allowed=false without incrementing the
// count, so a caller cannot "refill" a window by calling faster.
func (l *SessionLimiter) CheckAndRecord() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count < l.limit {
		l.count++
		return true
	}
	return false
}
