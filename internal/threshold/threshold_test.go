package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_GreaterThan(t *testing.T) {
	base := Policy{Comparison: GreaterThan, Minor: 0.05, Average: 0.10, Major: 0.20, Style: StylePercentage}

	tests := []struct {
		actual float64
		want   Severity
	}{
		{0.00, SeverityNone},
		{0.049, SeverityNone},
		{0.05, SeverityMinor},
		{0.099, SeverityMinor},
		{0.10, SeverityAverage},
		{0.20, SeverityMajor},
		{0.95, SeverityMajor},
	}
	for _, tt := range tests {
		p := base
		p.Actual = tt.actual
		assert.Equal(t, tt.want, Evaluate(p), "actual=%v", tt.actual)
	}
}

func TestEvaluate_LessThan(t *testing.T) {
	base := Policy{Comparison: LessThan, Minor: 0.90, Average: 0.80, Major: 0.70, Style: StylePercentage}

	tests := []struct {
		actual float64
		want   Severity
	}{
		{1.00, SeverityNone},
		{0.91, SeverityNone},
		{0.90, SeverityMinor},
		{0.85, SeverityMinor},
		{0.80, SeverityAverage},
		{0.75, SeverityAverage},
		{0.70, SeverityMajor},
		{0.10, SeverityMajor},
	}
	for _, tt := range tests {
		p := base
		p.Actual = tt.actual
		assert.Equal(t, tt.want, p.Evaluate(), "actual=%v", tt.actual)
	}
}

func TestEvaluate_Boolean(t *testing.T) {
	p := Policy{Comparison: GreaterThan, Minor: 1, Average: 1, Major: 1, Style: StyleBoolean}

	p.Actual = 0
	assert.Equal(t, SeverityNone, Evaluate(p))

	// Any non-zero value counts as true
	p.Actual = 7
	assert.Equal(t, SeverityMajor, Evaluate(p))
}

func TestEvaluate_UnknownComparisonAndNaN(t *testing.T) {
	assert.Equal(t, SeverityNone, Evaluate(Policy{Actual: 10, Comparison: "between"}))
	assert.Equal(t, SeverityNone, Evaluate(Policy{Actual: math.NaN(), Comparison: GreaterThan}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.34%", Policy{Style: StylePercentage}.Format(0.1234))
	assert.Equal(t, "100.00%", Policy{Style: StylePercentage}.Format(1))
	assert.Equal(t, "1,234", Policy{Style: StyleNumber}.Format(1234))
	assert.Equal(t, "1,234.50", Policy{Style: StyleNumber}.Format(1234.5))
	assert.Equal(t, "true", Policy{Style: StyleBoolean}.Format(1))
	assert.Equal(t, "false", Policy{Style: StyleBoolean}.Format(0))
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityMajor.AtLeast(SeverityMinor))
	assert.True(t, SeverityMinor.AtLeast(SeverityMinor))
	assert.False(t, SeverityNone.AtLeast(SeverityMinor))
}

func TestSet_Suggest(t *testing.T) {
	set := Set{
		"buffs.backdraft.uptime": {Comparison: LessThan, Minor: 0.9, Average: 0.8, Major: 0.7, Style: StylePercentage},
	}

	s, ok := set.Suggest("buffs.backdraft.uptime", 0.75)
	assert.True(t, ok)
	assert.Equal(t, SeverityAverage, s.Severity)
	assert.Equal(t, "75.00%", s.Display)
	assert.Equal(t, 0.75, s.Policy.Actual)

	_, ok = set.Suggest("unknown", 1)
	assert.False(t, ok)
}
