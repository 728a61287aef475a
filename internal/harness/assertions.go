package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/combatlog/internal/report"
	"github.com/roach88/combatlog/internal/threshold"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Modules  []report.Module // Reported modules for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Modules) > 0 {
		fmt.Fprintf(&buf, "\nReport modules:\n")
		for i, m := range e.Modules {
			fmt.Fprintf(&buf, "  [%d] %s (%s)\n", i+1, m.Name, m.Status)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against rep and returns the
// failure messages. An empty slice means all assertions passed.
func EvaluateAssertions(rep *report.Report, assertions []Assertion) []string {
	errors := []string{}
	for i, a := range assertions {
		if err := evaluate(rep, a); err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errors
}

func evaluate(rep *report.Report, a Assertion) error {
	switch a.Type {
	case AssertMetric:
		return assertMetric(rep, a)
	case AssertStatus:
		return assertStatus(rep, a)
	case AssertSuggestion:
		return assertSuggestion(rep, a)
	case AssertOrder:
		return assertOrder(rep, a)
	case AssertAnomaly:
		return assertAnomaly(rep, a)
	case AssertComplete:
		return assertComplete(rep, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertMetric checks a module metric. A module that is not ok has no
// metrics, so the assertion fails with its status as the actual value.
func assertMetric(rep *report.Report, a Assertion) error {
	m, ok := rep.Module(a.Module)
	if !ok {
		return missingModule(rep, AssertMetric, a.Module)
	}
	raw, ok := m.Metrics[a.Metric]
	if !ok {
		return &AssertionError{
			Type:     AssertMetric,
			Expected: fmt.Sprintf("metric %s.%s", a.Module, a.Metric),
			Actual:   fmt.Sprintf("no such metric (module status %s)", m.Status),
			Modules:  rep.Modules,
		}
	}
	got, ok := toFloat(raw)
	if !ok {
		return &AssertionError{
			Type:     AssertMetric,
			Expected: fmt.Sprintf("numeric metric %s.%s", a.Module, a.Metric),
			Actual:   fmt.Sprintf("%v (%T)", raw, raw),
			Modules:  rep.Modules,
		}
	}
	if math.Abs(got-*a.Equals) > a.Tolerance {
		return &AssertionError{
			Type:     AssertMetric,
			Expected: fmt.Sprintf("%s.%s = %v (±%v)", a.Module, a.Metric, *a.Equals, a.Tolerance),
			Actual:   fmt.Sprintf("%v", got),
			Modules:  rep.Modules,
		}
	}
	return nil
}

func assertStatus(rep *report.Report, a Assertion) error {
	m, ok := rep.Module(a.Module)
	if !ok {
		return missingModule(rep, AssertStatus, a.Module)
	}
	if string(m.Status) != a.Status {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%s is %s", a.Module, a.Status),
			Actual:   string(m.Status),
			Modules:  rep.Modules,
		}
	}
	return nil
}

// assertSuggestion finds the suggestion graded for a metric, in one module
// when Module is set or across the report otherwise.
func assertSuggestion(rep *report.Report, a Assertion) error {
	got := threshold.SeverityNone
	found := false
	for _, m := range rep.Modules {
		if a.Module != "" && m.Name != a.Module {
			continue
		}
		for _, s := range m.Suggestions {
			if s.Metric == a.Metric {
				got, found = s.Severity, true
			}
		}
	}
	if !found && threshold.Severity(a.Severity) != threshold.SeverityNone {
		return &AssertionError{
			Type:     AssertSuggestion,
			Expected: fmt.Sprintf("%s graded %s", a.Metric, a.Severity),
			Actual:   "no suggestion for metric",
			Modules:  rep.Modules,
		}
	}
	if string(got) != a.Severity {
		return &AssertionError{
			Type:     AssertSuggestion,
			Expected: fmt.Sprintf("%s graded %s", a.Metric, a.Severity),
			Actual:   string(got),
			Modules:  rep.Modules,
		}
	}
	return nil
}

// assertOrder checks that modules appear in the construction order in the
// given relative order. Modules don't need to be consecutive.
func assertOrder(rep *report.Report, a Assertion) error {
	prev := -1
	for _, name := range a.Modules {
		pos := slices.Index(rep.Order, name)
		if pos < 0 {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("all modules present: %v", a.Modules),
				Actual:   fmt.Sprintf("missing module %s in %v", name, rep.Order),
			}
		}
		if pos <= prev {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("modules in order: %v", a.Modules),
				Actual:   fmt.Sprintf("order was %v", rep.Order),
			}
		}
		prev = pos
	}
	return nil
}

func assertAnomaly(rep *report.Report, a Assertion) error {
	count := 0
	for _, an := range rep.Anomalies {
		if an.Module == a.Module && an.Code == a.Code {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertAnomaly,
			Expected: fmt.Sprintf("%d %s anomalies from %s", *a.Count, a.Code, a.Module),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

func assertComplete(rep *report.Report, a Assertion) error {
	if rep.Complete != *a.Complete {
		actual := "complete"
		if !rep.Complete {
			actual = "aborted: " + rep.Abort
		}
		return &AssertionError{
			Type:     AssertComplete,
			Expected: fmt.Sprintf("complete = %t", *a.Complete),
			Actual:   actual,
		}
	}
	return nil
}

func missingModule(rep *report.Report, typ, name string) error {
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("module %s in report", name),
		Actual:   "module not reported",
		Modules:  rep.Modules,
	}
}

func toFloat(v any) (float64, bool) {
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
