package engine

// Status is the reporting state of a module after a run.
type Status string

const (
	// StatusOK means the module ran cleanly and is active.
	StatusOK Status = "ok"

	// StatusInactive means the module ran but declared it has nothing to
	// contribute (e.g. the entity never used the tracked ability).
	StatusInactive Status = "inactive"

	// StatusDegraded means at least one handler failed; state is best-effort.
	StatusDegraded Status = "degraded"

	// StatusUnavailable means the module was never constructed.
	StatusUnavailable Status = "unavailable"
)

// ModuleResult is the post-replay view of one module.
type ModuleResult struct {
	Name string

	// Instance is nil when the module is unavailable.
	Instance Module

	Status       Status
	Failures     []*HandlerError
	ConstructErr *ConstructionError

	inactive bool
}

// Usable reports whether the module's output may be reported.
func (m *ModuleResult) Usable() bool {
	return m.Status == StatusOK
}

// status applies the precedence unavailable > degraded > inactive > ok.
func (m *ModuleResult) status() Status {
	switch {
	case m.ConstructErr != nil || m.Instance == nil:
		return StatusUnavailable
	case len(m.Failures) > 0:
		return StatusDegraded
	case m.inactive:
		return StatusInactive
	default:
		return StatusOK
	}
}

// Result is the outcome of one run.
//
// A Result is read-only once Run returns. When Complete is false, Abort
// holds the reason and module state reflects events up to the abort point.
type Result struct {
	RunID           string
	Info            RunInfo
	Order           []string
	Complete        bool
	Abort           error
	EventsProcessed int
	EventsTotal     int
	Anomalies       []Anomaly

	modules map[string]*ModuleResult
}

// Module returns the result for name.
func (r *Result) Module(name string) (*ModuleResult, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns module results in construction order.
func (r *Result) Modules() []*ModuleResult {
	out := make([]*ModuleResult, 0, len(r.Order))
	for _, name := range r.Order {
		out = append(out, r.modules[name])
	}
	return out
}

// Failures returns every handler failure, grouped by module in
// construction order.
func (r *Result) Failures() []*HandlerError {
	var out []*HandlerError
	for _, name := range r.Order {
		out = append(out, r.modules[name].Failures...)
	}
	return out
}

// AnomaliesFor returns the anomalies recorded by one module.
func (r *Result) AnomaliesFor(module string) []Anomaly {
	var out []Anomaly
	for _, a := range r.Anomalies {
		if a.Module == module {
			out = append(out, a)
		}
	}
	return out
}

// Instance returns the constructed instance of name asserted to type T.
// It returns false for unknown or unavailable modules and for a type
// mismatch. Degraded and inactive instances are returned.
func Instance[T any](r *Result, name string) (T, bool) {
	var zero T
	m, ok := r.modules[name]
	if !ok || m.Instance == nil {
		return zero, false
	}
	t, ok := m.Instance.(T)
	return t, ok
}
