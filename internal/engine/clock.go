package engine

import "sync/atomic"

// Clock is a monotonic logical clock. Every processed event is stamped
// with a strictly increasing seq, so the audit trail orders events
// without consulting wall time.
//
// Safe for concurrent use, though the processor's single-consumer
// design means one goroutine normally calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position, e.g. the
// highest seq already present in the audit store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number. Each call returns a unique,
// increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock's position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
