package engine

import (
	"fmt"

	"github.com/roach88/combatlog/internal/event"
)

// RunInfo is the read-only run context handed to every factory.
type RunInfo struct {
	RunID string `json:"run_id"`

	// EntityID is the analyzed entity. Zero means no entity filter.
	EntityID int64 `json:"entity"`

	// Start and End bound the fight in milliseconds. When both are zero
	// the bounds are taken from the first and last event of the log.
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Duration returns End - Start.
func (r RunInfo) Duration() int64 {
	return r.End - r.Start
}

// Handler processes one event delivered to a subscription.
// A returned error or a panic marks the owning module degraded.
type Handler func(ev event.Event) error

type subscription struct {
	module    string
	position  int // module position in resolver order
	predicate event.Predicate
	handler   Handler
}

// Anomaly is a recorded data inconsistency: a value was clamped to the
// nearest valid one and replay continued.
type Anomaly struct {
	Module    string `json:"module"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
}

// Recorder collects anomalies on behalf of one module.
type Recorder struct {
	module string
	run    *runState
}

// Record adds an anomaly stamped with the event currently being delivered.
// During construction Seq is 0 and Timestamp is the run start.
func (r *Recorder) Record(code, format string, args ...any) {
	r.run.anomalies = append(r.run.anomalies, Anomaly{
		Module:    r.module,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Seq:       r.run.current.Seq,
		Timestamp: r.run.now(),
	})
}

// ReplayClock reports the timestamp of the event being delivered.
type ReplayClock struct {
	run *runState
}

// Now returns the current replay timestamp: the run start before the first
// event, the timestamp of the event being delivered during replay, and the
// run end after replay.
func (c *ReplayClock) Now() int64 {
	return c.run.now()
}

// InitContext is the construction-time API of one module.
//
// It is valid only while the factory runs, except for the Recorder and
// Clock, which modules may keep and use from their handlers.
type InitContext struct {
	name     string
	spec     Spec
	run      *runState
	subs     []subscription
	inactive bool
	closed   bool // set when the factory returns
	recorder *Recorder
	clock    *ReplayClock
}

func (ic *InitContext) checkOpen(method string) {
	if ic.closed {
		panic(fmt.Errorf("module %s: %s: %w", ic.name, method, ErrConstructionClosed))
	}
}

// Name returns the module being constructed.
func (ic *InitContext) Name() string {
	return ic.name
}

// Run returns the run context.
func (ic *InitContext) Run() RunInfo {
	return ic.run.info
}

// Dependency returns the constructed instance of a declared dependency.
// Only names listed in the module's spec are reachable.
func (ic *InitContext) Dependency(name string) (Module, error) {
	declared := false
	for _, dep := range ic.spec.Dependencies {
		if dep == name {
			declared = true
			break
		}
	}
	if !declared {
		return nil, fmt.Errorf("module %s did not declare dependency %s", ic.name, name)
	}
	mr, ok := ic.run.modules[name]
	if !ok || mr.Instance == nil {
		return nil, fmt.Errorf("dependency %s: %w", name, ErrDependencyUnavailable)
	}
	return mr.Instance, nil
}

// Dependency returns a declared dependency of ic asserted to type T.
//
//	cd, err := engine.Dependency[*tracker.Cooldowns](ic, tracker.CooldownsModule)
func Dependency[T any](ic *InitContext, name string) (T, error) {
	var zero T
	m, err := ic.Dependency(name)
	if err != nil {
		return zero, err
	}
	t, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("dependency %s has type %T, want %T", name, m, zero)
	}
	return t, nil
}

// Subscribe registers handler for events matching predicate. A nil
// predicate matches every event. Subscriptions take effect only when
// the factory returns successfully; calling Subscribe after that panics
// with ErrConstructionClosed.
func (ic *InitContext) Subscribe(predicate event.Predicate, handler Handler) {
	ic.checkOpen("Subscribe")
	if predicate == nil {
		predicate = event.Any
	}
	ic.subs = append(ic.subs, subscription{
		module:    ic.name,
		position:  ic.run.positions[ic.name],
		predicate: predicate,
		handler:   handler,
	})
}

// Deactivate flags the module inactive. It is still dispatched to, but
// its contribution is suppressed from reporting. Like Subscribe, it is
// only valid inside the factory.
func (ic *InitContext) Deactivate() {
	ic.checkOpen("Deactivate")
	ic.inactive = true
}

// Recorder returns the module's anomaly recorder.
func (ic *InitContext) Recorder() *Recorder {
	return ic.recorder
}

// Clock returns the replay clock.
func (ic *InitContext) Clock() *ReplayClock {
	return ic.clock
}
