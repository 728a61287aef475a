// Package engine implements the combat log analysis runtime.
//
// The engine resolves a dependency graph of analysis modules, constructs
// them in dependency order, and replays an immutable event sequence to
// their subscriptions.
//
// ARCHITECTURE:
//
// Single-Threaded Replay:
// Each run processes all events in one goroutine for deterministic
// behavior. This ensures:
//   - Predictable delivery order
//   - Reproducible results on replay
//   - Simple reasoning about cross-module reads
//
// Run Phases:
//  1. Input validation (event.NewLog): non-monotonic input is fatal
//  2. Resolve(): construction order or ConfigurationError
//  3. Construction: factories called in order with an InitContext that
//     exposes only declared dependencies and a Subscribe primitive
//  4. Replay: every event once; matching subscriptions in dependency order
//  5. Post-replay: Result exposes instances, statuses, failures, anomalies
//
// Parallelism is permitted only across independent runs. Engine.Run is
// safe for concurrent use because each run owns its module instances.
//
// FAILURE CONTAINMENT:
//
// A handler error or panic is recorded against that module with the
// triggering event, the module is marked degraded, and dispatch continues
// for every other subscriber. A construction failure marks the module and
// all of its transitive dependents unavailable; siblings are unaffected.
package engine
