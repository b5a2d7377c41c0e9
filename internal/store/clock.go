package store

import "sync/atomic"

// seqClock is a monotonic logical clock for audit event ordering.
//
// Every audit event is stamped with a strictly increasing seq so
// history queries have a total order that never depends on wall-clock
// resolution or timezone. The clock resumes from MAX(seq) when an
// existing database is opened.
type seqClock struct {
	seq atomic.Int64
}

// newSeqClockAt creates a clock resuming from a known position.
func newSeqClockAt(start int64) *seqClock {
	c := &seqClock{}
	c.seq.Store(start)
	return c
}

// next returns the next sequence number and increments the clock.
func (c *seqClock) next() int64 {
	return c.seq.Add(1)
}

// current returns the current sequence number without incrementing.
func (c *seqClock) current() int64 {
	return c.seq.Load()
}
