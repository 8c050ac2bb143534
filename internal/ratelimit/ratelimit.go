// Package ratelimit provides fixed-window rate limiting for tool
// dispatch, keyed by tool and agent.
//
// Counters are shared across all concurrent executions in the process:
// two runs for the same agent dispatching the same tool contend on the
// same window. The window is fixed, not sliding: it resets wholesale
// when its deadline passes, so bursts of up to twice the limit are
// possible at window boundaries. Callers must not assume hard real-time
// precision.
package ratelimit

import (
	"sync"
	"time"
)

// Window identifies which limit window a decision applies to.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Duration returns the wall-clock span of the window.
func (w Window) Duration() time.Duration {
	if w == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// Decision is the outcome of a limit check.
type Decision struct {
	// Allowed is false when a window limit was exceeded.
	Allowed bool

	// Window names the window that tripped when Allowed is false.
	Window Window

	// Limit is the configured ceiling for the tripped window.
	Limit int

	// ResetAt is when the tripped window resets.
	ResetAt time.Time
}

type counter struct {
	count   int
	resetAt time.Time
}

// Limiter tracks fixed-window counters keyed by (tool, agent, window).
// It is safe for concurrent use. Construct one per process and inject it
// into the dispatcher; it carries no hidden lifecycle.
type Limiter struct {
	mu  sync.Mutex
	now func() time.Time

	counters map[string]*counter
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// NewWithClock creates a limiter with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	if now != nil {
		l.now = now
	}
	return l
}

// Allow checks and consumes one slot for the given tool and agent.
// A zero or negative limit disables that window. The per-minute window
// is checked before the per-hour window; the first exceeded window wins.
// When allowed, both windows are incremented atomically under one lock
// so concurrent dispatches cannot double-spend.
func (l *Limiter) Allow(tool, agentID string, perMinute, perHour int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if perMinute > 0 {
		c := l.counterLocked(tool, agentID, WindowMinute, now)
		if c.count >= perMinute {
			return Decision{Window: WindowMinute, Limit: perMinute, ResetAt: c.resetAt}
		}
	}
	if perHour > 0 {
		c := l.counterLocked(tool, agentID, WindowHour, now)
		if c.count >= perHour {
			return Decision{Window: WindowHour, Limit: perHour, ResetAt: c.resetAt}
		}
	}

	if perMinute > 0 {
		l.counterLocked(tool, agentID, WindowMinute, now).count++
	}
	if perHour > 0 {
		l.counterLocked(tool, agentID, WindowHour, now).count++
	}
	return Decision{Allowed: true}
}

// counterLocked returns the live counter for a key, resetting it if its
// window has lapsed. Must be called with l.mu held.
func (l *Limiter) counterLocked(tool, agentID string, w Window, now time.Time) *counter {
	key := tool + "\x00" + agentID + "\x00" + string(w)
	c, ok := l.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{resetAt: now.Add(w.Duration())}
		l.counters[key] = c
	}
	return c
}

// Prune drops counters whose window has lapsed. Intended as an
// occasional maintenance call; correctness does not depend on it.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pruned := 0
	for key, c := range l.counters {
		if now.After(c.resetAt) {
			delete(l.counters, key)
			pruned++
		}
	}
	return pruned
}
