package model

import "time"

// Clock supplies wall-clock time for timestamps and expiry checks.
// Ordering never depends on it; the invitation compare-and-set does.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC, truncated to milliseconds so values
// round-trip through storage unchanged.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
