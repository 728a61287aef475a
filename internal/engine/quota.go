package engine

import (
	"errors"
	"fmt"
)

// EventBudget limits the number of events a single run may process.
//
// The budget is checked between events, so a run aborted by the budget
// never leaves an event half-delivered. A limit <= 0 disables the budget.
type EventBudget struct {
	limit   int
	current int
}

// NewEventBudget creates a budget with the given limit.
func NewEventBudget(limit int) *EventBudget {
	return &EventBudget{limit: limit}
}

// Check increments the counter and validates against the limit.
// Returns *BudgetExceededError if the next event would exceed the budget.
func (b *EventBudget) Check() error {
	if b.limit <= 0 {
		return nil
	}
	if b.current >= b.limit {
		return &BudgetExceededError{Processed: b.current, Limit: b.limit}
	}
	b.current++
	return nil
}

// Current returns the number of events admitted so far.
func (b *EventBudget) Current() int {
	return b.current
}

// Limit returns the configured limit.
func (b *EventBudget) Limit() int {
	return b.limit
}

// BudgetExceededError is the abort reason when a run exceeds its event budget.
type BudgetExceededError struct {
	Processed int
	Limit     int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("event budget exceeded: %d events processed, limit %d", e.Processed, e.Limit)
}

// IsBudgetError returns true if err is a BudgetExceededError.
func IsBudgetError(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
