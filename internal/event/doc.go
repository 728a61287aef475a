// Package event defines the canonical combat log event and the validated,
// immutable event sequence consumed by the analysis engine.
//
// ORDERING:
//
// Events are ordered by Timestamp ascending, then by Seq (arrival position)
// ascending. Seq is assigned by NewLog from a logical Clock; ties on
// Timestamp never reorder.
//
// Timestamps are integer milliseconds relative to the start of the report.
// NEVER use wall-clock or floating-point time for ordering.
package event
