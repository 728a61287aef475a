package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/combatlog/internal/event"
)

// Engine runs a resolved set of analysis modules over combat logs.
//
// An Engine is immutable after New: the registry snapshot and resolver
// order are fixed, and every Run builds fresh module instances. Run is
// therefore safe to call from multiple goroutines for independent runs.
//
// Within one run everything is single-threaded:
//   - Construction happens strictly in resolver order
//   - Each event is delivered once, in log order
//   - For one event, subscriptions fire in module order, then in the
//     order the module registered them
type Engine struct {
	specs     map[string]Spec
	order     []string
	maxEvents int
	runIDs    RunIDGenerator
	logger    *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxEvents sets the per-run event budget.
//
// Default: 0 (unlimited). A run that reaches the budget is aborted between
// events and its result is marked incomplete.
func WithMaxEvents(n int) EngineOption {
	return func(e *Engine) {
		e.maxEvents = n
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New resolves requested against reg and returns an Engine.
//
// Configuration errors (cycles, unknown dependencies, unknown modules) are
// returned here, before any module could be constructed. Specs are
// snapshotted: registering more modules on reg afterwards has no effect.
func New(reg *Registry, requested []string, opts ...EngineOption) (*Engine, error) {
	order, err := Resolve(reg, requested)
	if err != nil {
		return nil, err
	}

	specs := make(map[string]Spec, len(order))
	for _, name := range order {
		specs[name] = reg.specs[name]
	}

	e := &Engine{
		specs:  specs,
		order:  order,
		runIDs: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Order returns the construction order.
func (e *Engine) Order() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Run performs one analysis run over events.
//
// Returned errors are fatal for the whole run: *event.InputError for a
// malformed sequence, or invalid run bounds. Everything else is contained
// and reported through the Result:
//   - Construction failures mark the module and its dependents unavailable
//   - Handler failures mark the module degraded; dispatch continues
//   - Cancellation or an exhausted event budget aborts between events,
//     leaving Complete=false and partial state queryable
func (e *Engine) Run(ctx context.Context, info RunInfo, events []event.Event) (*Result, error) {
	log, err := event.NewLog(events)
	if err != nil {
		return nil, err
	}

	if info.Start == 0 && info.End == 0 {
		info.Start, info.End = log.Bounds()
	}
	if info.End < info.Start {
		return nil, fmt.Errorf("invalid run bounds: end %d before start %d", info.End, info.Start)
	}
	if info.RunID == "" {
		info.RunID = e.runIDs.Generate()
	}

	logger := e.logger.With("run_id", info.RunID)
	rs := newRunState(info, e.order)
	res := &Result{
		RunID:       info.RunID,
		Info:        info,
		Order:       e.Order(),
		Complete:    true,
		EventsTotal: log.Len(),
		modules:     rs.modules,
	}

	logger.Debug("run starting",
		"modules", len(e.order),
		"events", log.Len(),
		"entity", info.EntityID,
		"start", info.Start,
		"end", info.End,
	)

	subs := e.construct(ctx, rs, res, logger)
	e.replay(ctx, rs, res, log, subs, logger)
	rs.finish(res.Complete)

	for _, name := range e.order {
		mr := rs.modules[name]
		if mr.Instance != nil && !mr.inactive {
			if a, ok := mr.Instance.(Activatable); ok {
				active, err := safeActive(a)
				if err != nil {
					mr.Failures = append(mr.Failures, &HandlerError{Module: name, Timestamp: rs.end, Err: err})
					logger.Error("module activity check failed",
						"module", name,
						"error", err,
					)
				}
				mr.inactive = !active
			}
		}
		mr.Status = mr.status()
	}
	res.Anomalies = rs.anomalies

	logger.Info("run finished",
		"complete", res.Complete,
		"events_processed", res.EventsProcessed,
		"events_total", res.EventsTotal,
		"failures", len(res.Failures()),
		"anomalies", len(res.Anomalies),
	)

	return res, nil
}

// construct instantiates modules in resolver order and returns the
// committed subscription list, already in dispatch order.
func (e *Engine) construct(ctx context.Context, rs *runState, res *Result, logger *slog.Logger) []subscription {
	var subs []subscription

	for _, name := range e.order {
		mr := rs.modules[name]
		spec := e.specs[name]

		if err := ctx.Err(); err != nil {
			mr.ConstructErr = &ConstructionError{Module: name, Err: err}
			if res.Complete {
				res.Complete = false
				res.Abort = err
				logger.Warn("run aborted during construction",
					"module", name,
					"error", err,
				)
			}
			continue
		}

		if dep := unavailableDependency(spec, rs); dep != "" {
			mr.ConstructErr = &ConstructionError{Module: name, Dependency: dep, Err: ErrDependencyUnavailable}
			logger.Warn("module skipped",
				"module", name,
				"dependency", dep,
			)
			continue
		}

		ic := &InitContext{
			name:     name,
			spec:     spec,
			run:      rs,
			recorder: &Recorder{module: name, run: rs},
			clock:    &ReplayClock{run: rs},
		}

		inst, err := safeConstruct(spec.Factory, ic)
		if err != nil {
			mr.ConstructErr = &ConstructionError{Module: name, Err: err}
			logger.Error("module construction failed",
				"module", name,
				"error", err,
			)
			continue
		}

		mr.Instance = inst
		mr.inactive = ic.inactive
		subs = append(subs, ic.subs...)

		logger.Debug("module constructed",
			"module", name,
			"subscriptions", len(ic.subs),
			"inactive", ic.inactive,
		)
	}

	return subs
}

func unavailableDependency(spec Spec, rs *runState) string {
	for _, dep := range spec.Dependencies {
		if mr, ok := rs.modules[dep]; !ok || mr.Instance == nil {
			return dep
		}
	}
	return ""
}

func (e *Engine) replay(
	ctx context.Context,
	rs *runState,
	res *Result,
	log *event.Log,
	subs []subscription,
	logger *slog.Logger,
) {
	if !res.Complete {
		return
	}

	rs.phase = phaseReplay
	budget := NewEventBudget(e.maxEvents)

	for i := 0; i < log.Len(); i++ {
		if err := ctx.Err(); err != nil {
			e.abort(res, err, logger)
			return
		}
		if err := budget.Check(); err != nil {
			e.abort(res, err, logger)
			return
		}

		ev := log.At(i)
		rs.current = ev

		for _, sub := range subs {
			matched, err := deliver(sub, ev)
			if !matched {
				continue
			}
			if err != nil {
				herr := &HandlerError{
					Module:    sub.module,
					Seq:       ev.Seq,
					Timestamp: ev.Timestamp,
					Kind:      ev.Kind,
					Err:       err,
				}
				mr := rs.modules[sub.module]
				mr.Failures = append(mr.Failures, herr)
				logger.Error("handler failed",
					"module", sub.module,
					"seq", ev.Seq,
					"timestamp", ev.Timestamp,
					"kind", ev.Kind,
					"error", err,
				)
			}
		}

		res.EventsProcessed++
	}
}

func (e *Engine) abort(res *Result, reason error, logger *slog.Logger) {
	res.Complete = false
	res.Abort = reason
	logger.Warn("run aborted",
		"events_processed", res.EventsProcessed,
		"events_total", res.EventsTotal,
		"reason", reason,
	)
}

// safeConstruct runs a factory, converting a panic into an error.
func safeConstruct(f Factory, ic *InitContext) (m Module, err error) {
	defer func() {
		ic.closed = true
		if r := recover(); r != nil {
			m, err = nil, &PanicError{Value: r}
		}
	}()
	m, err = f(ic)
	if err == nil && m == nil {
		err = fmt.Errorf("factory returned no instance")
	}
	return m, err
}

// safeActive evaluates a module's activity, converting a panic into an
// error.
func safeActive(a Activatable) (active bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			active, err = true, &PanicError{Value: r}
		}
	}()
	return a.Active(), nil
}

// deliver evaluates the predicate and runs the handler for one event.
// A panic in either counts as a handler failure.
func deliver(sub subscription, ev event.Event) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched, err = true, &PanicError{Value: r}
		}
	}()
	if !sub.predicate(ev) {
		return false, nil
	}
	return true, sub.handler(ev)
}

const (
	phaseConstruct = iota
	phaseReplay
	phaseDone
)

// runState is the mutable state of one run, shared by the engine and the
// InitContexts, Recorders and ReplayClocks it hands out.
type runState struct {
	info      RunInfo
	positions map[string]int
	modules   map[string]*ModuleResult
	anomalies []Anomaly
	current   event.Event
	phase     int
	end       int64
}

func newRunState(info RunInfo, order []string) *runState {
	rs := &runState{
		info:      info,
		positions: make(map[string]int, len(order)),
		modules:   make(map[string]*ModuleResult, len(order)),
		end:       info.End,
	}
	for i, name := range order {
		rs.positions[name] = i
		rs.modules[name] = &ModuleResult{Name: name}
	}
	return rs
}

// finish freezes the replay clock. An incomplete run ends at the last
// delivered event, so open windows are not extended past the abort point.
func (rs *runState) finish(complete bool) {
	if !complete {
		if rs.phase == phaseReplay {
			rs.end = max(rs.current.Timestamp, rs.info.Start)
		} else {
			rs.end = rs.info.Start
		}
	}
	rs.phase = phaseDone
}

func (rs *runState) now() int64 {
	switch rs.phase {
	case phaseReplay:
		if rs.current.Seq == 0 {
			return rs.info.Start
		}
		return rs.current.Timestamp
	case phaseDone:
		return rs.end
	default:
		return rs.info.Start
	}
}
