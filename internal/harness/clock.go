package harness

import "sync/atomic"

// Clock stamps trace events with increasing sequence numbers.
type Clock interface {
	Next() int64
}

// seqClock is a monotonic logical clock. It is safe for concurrent use.
type seqClock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() Clock {
	return &seqClock{}
}

func (c *seqClock) Next() int64 {
	return c.seq.Add(1)
}
