package engine

import "go.uber.org/atomic"

// Clock is a monotonic logical clock for ordering executions.
//
// Workers call Next() while holding the critical-section lock, so the
// returned seq values reproduce the order in which workers were serialized.
// Wall-clock timestamps are never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
