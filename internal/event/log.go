package event

import "fmt"

// InputError reports an event sequence that violates the input contract.
// It is fatal for the run: no module is constructed.
type InputError struct {
	Index   int
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid event sequence at index %d: %s", e.Index, e.Message)
}

// Log is a validated, immutable, time-ordered event sequence.
//
// INVARIANTS:
//   - Timestamps are non-decreasing in index order
//   - Seq values are strictly increasing in index order
//   - The backing slice is never exposed for mutation
type Log struct {
	events []Event
}

// NewLog validates events and returns an immutable Log.
//
// The input slice is copied. Seq is re-stamped from a fresh Clock so that
// it always reflects arrival position, whatever the caller supplied.
//
// Returns *InputError if a timestamp is negative or decreases.
func NewLog(events []Event) (*Log, error) {
	clock := NewClock()
	out := make([]Event, len(events))
	var prev int64
	for i, ev := range events {
		if ev.Timestamp < 0 {
			return nil, &InputError{Index: i, Message: fmt.Sprintf("negative timestamp %d", ev.Timestamp)}
		}
		if i > 0 && ev.Timestamp < prev {
			return nil, &InputError{
				Index:   i,
				Message: fmt.Sprintf("timestamp %d precedes previous timestamp %d", ev.Timestamp, prev),
			}
		}
		if ev.Kind == "" {
			return nil, &InputError{Index: i, Message: "event kind is required"}
		}
		prev = ev.Timestamp
		ev.Seq = clock.Next()
		out[i] = ev
	}
	return &Log{events: out}, nil
}

// Len returns the number of events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// At returns a copy of the event at index i.
func (l *Log) At(i int) Event {
	return l.events[i]
}

// Events returns a copy of the events in order.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Bounds returns the first and last timestamps, or (0, 0) for an empty log.
func (l *Log) Bounds() (start, end int64) {
	if l.Len() == 0 {
		return 0, 0
	}
	return l.events[0].Timestamp, l.events[len(l.events)-1].Timestamp
}
