package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a Clock.
var Epoch = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

// Clock is a controllable wall clock for tests.
//
// Unlike model.SystemClock, Clock only moves when told to, so expiry and
// timestamp assertions are exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock reading Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// NewClockAt creates a clock reading t.
func NewClockAt(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

// Now returns the current reading. Implements model.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
