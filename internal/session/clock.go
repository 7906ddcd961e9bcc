package session

import "sync/atomic"

// Clock is a monotonic logical clock. Every accepted session call is
// stamped with the next value, so a written snapshot records how many calls
// produced it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
