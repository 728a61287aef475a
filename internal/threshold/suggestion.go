package threshold

// Suggestion is the outward reporting record for one graded metric.
// Rendering is left to the consumer; the core defines only the shape.
type Suggestion struct {
	Metric   string   `json:"metric"`
	Policy   Policy   `json:"policy"`
	Severity Severity `json:"severity"`
	Display  string   `json:"display"`
}

// NewSuggestion evaluates p and packages it for reporting.
func NewSuggestion(metric string, p Policy) Suggestion {
	return Suggestion{
		Metric:   metric,
		Policy:   p,
		Severity: Evaluate(p),
		Display:  p.FormatActual(),
	}
}

// Suggester is implemented by modules that emit graded suggestions.
// Suggestions must be computed from finalized metrics to be authoritative.
type Suggester interface {
	Suggestions() []Suggestion
}

// Bounds is a policy without its actual value, as declared in profiles.
type Bounds struct {
	Comparison Comparison `json:"comparison" yaml:"comparison"`
	Minor      float64    `json:"minor" yaml:"minor"`
	Average    float64    `json:"average" yaml:"average"`
	Major      float64    `json:"major" yaml:"major"`
	Style      Style      `json:"style" yaml:"style"`
}

// With binds an actual value to the bounds.
func (b Bounds) With(actual float64) Policy {
	return Policy{
		Actual:     actual,
		Comparison: b.Comparison,
		Minor:      b.Minor,
		Average:    b.Average,
		Major:      b.Major,
		Style:      b.Style,
	}
}

// Set maps metric names to declared bounds.
type Set map[string]Bounds

// Suggest returns a suggestion for metric when bounds are declared for it.
func (s Set) Suggest(metric string, actual float64) (Suggestion, bool) {
	b, ok := s[metric]
	if !ok {
		return Suggestion{}, false
	}
	return NewSuggestion(metric, b.With(actual)), true
}
