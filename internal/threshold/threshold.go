// Package threshold grades measured metrics against declared policies.
//
// Evaluation is a pure function: it never stores derived state, and it may
// be called mid-replay to obtain a provisional grade.
package threshold

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Severity is the graded outcome of a policy evaluation.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityMinor   Severity = "minor"
	SeverityAverage Severity = "average"
	SeverityMajor   Severity = "major"
)

// rank orders severities for comparisons (none < minor < average < major).
func (s Severity) rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityAverage:
		return 2
	case SeverityMajor:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Comparison is the direction in which a metric becomes worse.
type Comparison string

const (
	// GreaterThan grades values at or above the boundaries (e.g. waste ratio).
	GreaterThan Comparison = "greaterThan"
	// LessThan grades values at or below the boundaries (e.g. uptime).
	LessThan Comparison = "lessThan"
)

// Style controls how the actual value is interpreted and displayed.
type Style string

const (
	StylePercentage Style = "percentage"
	StyleNumber     Style = "number"
	StyleBoolean    Style = "boolean"
)

// Policy is a measured value plus the boundaries it is graded against.
//
// For GreaterThan policies boundaries are expected Minor <= Average <= Major;
// for LessThan policies Minor >= Average >= Major. Boundaries are inclusive.
type Policy struct {
	Actual     float64    `json:"actual" yaml:"actual"`
	Comparison Comparison `json:"comparison" yaml:"comparison"`
	Minor      float64    `json:"minor" yaml:"minor"`
	Average    float64    `json:"average" yaml:"average"`
	Major      float64    `json:"major" yaml:"major"`
	Style      Style      `json:"style" yaml:"style"`
}

// Evaluate returns the tightest boundary the actual value meets,
// scanning major -> average -> minor. Returns SeverityNone when no
// boundary is met or the comparison is unknown.
func Evaluate(p Policy) Severity {
	actual := p.Actual
	if p.Style == StyleBoolean {
		actual = toBool(actual)
	}
	if math.IsNaN(actual) {
		return SeverityNone
	}

	var meets func(boundary float64) bool
	switch p.Comparison {
	case GreaterThan:
		meets = func(b float64) bool { return actual >= b }
	case LessThan:
		meets = func(b float64) bool { return actual <= b }
	default:
		return SeverityNone
	}

	switch {
	case meets(p.Major):
		return SeverityMajor
	case meets(p.Average):
		return SeverityAverage
	case meets(p.Minor):
		return SeverityMinor
	default:
		return SeverityNone
	}
}

// Evaluate is shorthand for Evaluate(p).
func (p Policy) Evaluate() Severity {
	return Evaluate(p)
}

var printer = message.NewPrinter(language.English)

// Format renders v according to the policy style.
//
//	percentage: v*100 with two decimals, "12.34%"
//	number:     grouped, integers without decimals, "1,234" or "1,234.50"
//	boolean:    "true" / "false"
func (p Policy) Format(v float64) string {
	switch p.Style {
	case StylePercentage:
		return printer.Sprintf("%.2f%%", v*100)
	case StyleBoolean:
		return fmt.Sprintf("%t", toBool(v) == 1)
	default:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return printer.Sprintf("%d", int64(v))
		}
		return printer.Sprintf("%.2f", v)
	}
}

// FormatActual renders the policy's own actual value.
func (p Policy) FormatActual() string {
	return p.Format(p.Actual)
}

func toBool(v float64) float64 {
	if v != 0 && !math.IsNaN(v) {
		return 1
	}
	return 0
}
