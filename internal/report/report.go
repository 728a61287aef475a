// Package report turns a finished run into the outward reporting record.
//
// A module that is degraded or unavailable contributes an explicit
// "unavailable" marker instead of metrics. Inactive modules are listed
// with their status and no metrics.
package report

import (
	"fmt"
	"sort"

	"github.com/roach88/combatlog/internal/canon"
	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

// Failure is a handler failure as reported.
type Failure struct {
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

// Module is the reported contribution of one module.
type Module struct {
	Name        string                 `json:"name"`
	Status      engine.Status          `json:"status"`
	Unavailable bool                   `json:"unavailable,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metrics     map[string]any         `json:"metrics,omitempty"`
	Suggestions []threshold.Suggestion `json:"suggestions,omitempty"`
	Failures    []Failure              `json:"failures,omitempty"`
}

// Report is the outcome of one run in reportable form.
type Report struct {
	RunID           string           `json:"run_id"`
	Profile         string           `json:"profile,omitempty"`
	Run             engine.RunInfo   `json:"run"`
	Complete        bool             `json:"complete"`
	Abort           string           `json:"abort,omitempty"`
	EventsProcessed int              `json:"events_processed"`
	EventsTotal     int              `json:"events_total"`
	Order           []string         `json:"order"`
	Modules         []Module         `json:"modules"`
	Anomalies       []engine.Anomaly `json:"anomalies,omitempty"`
}

// Build assembles the report for res.
//
// Suggestions come from modules implementing threshold.Suggester. Any
// numeric metric not already graded by its module is graded against
// thresholds when a bound is declared under the metric's name.
func Build(res *engine.Result, thresholds threshold.Set) *Report {
	r := &Report{
		RunID:           res.RunID,
		Run:             res.Info,
		Complete:        res.Complete,
		EventsProcessed: res.EventsProcessed,
		EventsTotal:     res.EventsTotal,
		Order:           append([]string(nil), res.Order...),
		Anomalies:       append([]engine.Anomaly(nil), res.Anomalies...),
	}
	if res.Abort != nil {
		r.Abort = res.Abort.Error()
	}

	for _, m := range res.Modules() {
		r.Modules = append(r.Modules, buildModule(m, thresholds))
	}
	return r
}

func buildModule(m *engine.ModuleResult, thresholds threshold.Set) Module {
	out := Module{Name: m.Name, Status: m.Status}

	switch m.Status {
	case engine.StatusUnavailable:
		out.Unavailable = true
		if m.ConstructErr != nil {
			out.Error = m.ConstructErr.Error()
		}
		return out
	case engine.StatusDegraded:
		out.Unavailable = true
		for _, f := range m.Failures {
			out.Failures = append(out.Failures, Failure{
				Seq:       f.Seq,
				Timestamp: f.Timestamp,
				Kind:      string(f.Kind),
				Error:     f.Err.Error(),
			})
		}
		return out
	case engine.StatusInactive:
		return out
	}

	metrics, suggestions, err := collect(m.Instance)
	if err != nil {
		out.Status = engine.StatusDegraded
		out.Unavailable = true
		out.Error = err.Error()
		return out
	}
	out.Metrics = metrics

	graded := make(map[string]bool)
	for _, sug := range suggestions {
		out.Suggestions = append(out.Suggestions, sug)
		graded[sug.Metric] = true
	}
	for _, name := range sortedKeys(out.Metrics) {
		if graded[name] {
			continue
		}
		v, ok := numeric(out.Metrics[name])
		if !ok {
			continue
		}
		if sug, ok := thresholds.Suggest(name, v); ok {
			out.Suggestions = append(out.Suggestions, sug)
		}
	}
	return out
}

// collect reads a module's metrics and suggestions. A panic in either is
// returned as an error.
func collect(inst engine.Module) (metrics map[string]any, suggestions []threshold.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics, suggestions, err = nil, nil, fmt.Errorf("reporting: %w", &engine.PanicError{Value: r})
		}
	}()
	if src, ok := inst.(tracker.MetricSource); ok {
		metrics = src.Metrics()
	}
	if s, ok := inst.(threshold.Suggester); ok {
		suggestions = s.Suggestions()
	}
	return metrics, suggestions, nil
}

// Module returns the reported module by name.
func (r *Report) Module(name string) (Module, bool) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// Suggestions returns every suggestion at or above floor, in module order.
func (r *Report) Suggestions(floor threshold.Severity) []threshold.Suggestion {
	var out []threshold.Suggestion
	for _, m := range r.Modules {
		for _, s := range m.Suggestions {
			if s.Severity != threshold.SeverityNone && s.Severity.AtLeast(floor) {
				out = append(out, s)
			}
		}
	}
	return out
}

// Canonical returns the canonical JSON encoding of the report, used for
// golden files and report digests.
func (r *Report) Canonical() ([]byte, error) {
	return canon.Marshal(r.object())
}

// Digest returns the content digest of the report.
func (r *Report) Digest() (string, error) {
	return canon.Digest(canon.DomainReport, r.object())
}

func (r *Report) object() canon.Object {
	modules := make(canon.Array, len(r.Modules))
	for i, m := range r.Modules {
		modules[i] = moduleObject(m)
	}
	anomalies := make(canon.Array, len(r.Anomalies))
	for i, a := range r.Anomalies {
		anomalies[i] = canon.Object{
			"module":    a.Module,
			"code":      a.Code,
			"message":   a.Message,
			"seq":       a.Seq,
			"timestamp": a.Timestamp,
		}
	}
	order := make([]string, len(r.Order))
	copy(order, r.Order)

	obj := canon.Object{
		"run_id": r.RunID,
		"run": canon.Object{
			"entity": r.Run.EntityID,
			"start":  r.Run.Start,
			"end":    r.Run.End,
		},
		"complete":         r.Complete,
		"events_processed": r.EventsProcessed,
		"events_total":     r.EventsTotal,
		"order":            order,
		"modules":          modules,
		"anomalies":        anomalies,
	}
	if r.Profile != "" {
		obj["profile"] = r.Profile
	}
	if r.Abort != "" {
		obj["abort"] = r.Abort
	}
	return obj
}

func moduleObject(m Module) canon.Object {
	obj := canon.Object{
		"name":   m.Name,
		"status": string(m.Status),
	}
	if m.Unavailable {
		obj["unavailable"] = true
	}
	if m.Error != "" {
		obj["error"] = m.Error
	}
	if m.Metrics != nil {
		metrics := make(canon.Object, len(m.Metrics))
		for k, v := range m.Metrics {
			metrics[k] = metricValue(v)
		}
		obj["metrics"] = metrics
	}
	if len(m.Suggestions) > 0 {
		sugs := make(canon.Array, len(m.Suggestions))
		for i, s := range m.Suggestions {
			sugs[i] = canon.Object{
				"metric":     s.Metric,
				"severity":   string(s.Severity),
				"display":    s.Display,
				"actual":     s.Policy.Actual,
				"comparison": string(s.Policy.Comparison),
				"minor":      s.Policy.Minor,
				"average":    s.Policy.Average,
				"major":      s.Policy.Major,
				"style":      string(s.Policy.Style),
			}
		}
		obj["suggestions"] = sugs
	}
	if len(m.Failures) > 0 {
		failures := make(canon.Array, len(m.Failures))
		for i, f := range m.Failures {
			failures[i] = canon.Object{
				"seq":       f.Seq,
				"timestamp": f.Timestamp,
				"kind":      f.Kind,
				"error":     f.Error,
			}
		}
		obj["failures"] = failures
	}
	return obj
}

// metricValue narrows metric values to types canonical JSON accepts.
func metricValue(v any) any {
	switch val := v.(type) {
	case int64, float64, bool, string:
		return val
	case int:
		return int64(val)
	default:
		return fmt.Sprint(val)
	}
}

func numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
