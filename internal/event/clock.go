package event

import "sync/atomic"

// Clock hands out arrival sequence numbers, starting at 1.
// Seq breaks ties between events that share a Timestamp.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number. Safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
