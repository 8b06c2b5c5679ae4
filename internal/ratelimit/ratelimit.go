// Package ratelimit implements the fixed-window request limiter applied per
// (caller, vendor) key before any vendor call is made.
package ratelimit

import (
	"sync"
	"time"
)

// sweepEvery bounds how many Allow calls may pass between lazy sweeps of
// expired entries.
const sweepEvery = 512

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter tracks request counts per key within a fixed time window. Construct
// one instance per process and inject it into the request handlers; the zero
// value is not usable. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*entry
	ops     int

	now func() time.Time
}

// New constructs a limiter allowing max requests per window for each key.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow records one request for key if its current window has capacity and
// reports whether the request may proceed. When the window is exhausted it
// returns false without touching the count, together with the time remaining
// until the window resets. An expired window is replaced by a fresh one with
// count 1.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.ops++
	if l.ops >= sweepEvery {
		l.ops = 0
		l.sweep(now)
	}

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	if e.count >= l.max {
		return false, e.resetAt.Sub(now)
	}

	e.count++
	return true, 0
}

// sweep drops expired entries; callers must hold the lock.
func (l *Limiter) sweep(now time.Time) {
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
		}
	}
}
