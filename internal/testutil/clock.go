// Package testutil provides deterministic collaborators for tests:
// a settable wall clock, a fixed temp-id sequence, and a scriptable
// remote store.
package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe settable wall clock. It satisfies the Clock
// interfaces of syncqueue, logbook, and streak, so one instance can
// drive a whole wired engine deterministically.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at the given instant.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current frozen instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to a specific instant.
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
