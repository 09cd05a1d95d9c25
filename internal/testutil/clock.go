package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time a Clock starts at unless told otherwise.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manual time source. It serves both wall-clock timestamps
// (Now) and host-relative milliseconds since the clock's origin (Millis),
// so snapshot timestamps and host timings move together.
type Clock struct {
	mu     sync.Mutex
	origin time.Time
	now    time.Time
}

// NewClock returns a Clock whose origin and current time are start, or
// Epoch when start is omitted.
func NewClock(start ...time.Time) *Clock {
	t := Epoch
	if len(start) > 0 {
		t = start[0]
	}
	return &Clock{origin: t, now: t}
}

// Now returns the current wall time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Millis returns the milliseconds elapsed since the origin.
func (c *Clock) Millis() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.now.Sub(c.origin)) / float64(time.Millisecond)
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceMillis moves the clock forward by ms and returns the new Millis.
func (c *Clock) AdvanceMillis(ms float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Duration(ms * float64(time.Millisecond)))
	return float64(c.now.Sub(c.origin)) / float64(time.Millisecond)
}
