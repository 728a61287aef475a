package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

// Scenario defines a conformance test scenario: a profile, an event
// sequence, and assertions on the resulting report.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Profile is the path to a CUE file or directory defining profiles.
	// Relative paths are resolved against the scenario file location.
	Profile string `yaml:"profile,omitempty"`

	// ProfileName selects a profile when Profile defines more than one.
	ProfileName string `yaml:"profile_name,omitempty"`

	// ProfileSource is inline CUE, used instead of Profile.
	ProfileSource string `yaml:"profile_source,omitempty"`

	// Events is the log to replay. Seq values are ignored.
	Events []event.Event `yaml:"events,omitempty"`

	// EventsFile is a .jsonl or .yaml log used instead of Events.
	// Relative paths are resolved against the scenario file location.
	EventsFile string `yaml:"events_file,omitempty"`

	// Entity overrides the profile's analyzed entity.
	Entity int64 `yaml:"entity,omitempty"`

	// Start and End bound the fight. Both zero uses the log bounds.
	Start int64 `yaml:"start,omitempty"`
	End   int64 `yaml:"end,omitempty"`

	// MaxEvents aborts the run after this many events, 0 for no limit.
	MaxEvents int `yaml:"max_events,omitempty"`

	// RunID is an optional fixed run id for deterministic tests.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the report.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of the report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "metric": module metric equals a value
	// - "status": module status matches
	// - "suggestion": metric graded at a severity
	// - "order": modules constructed in relative order
	// - "anomaly": module recorded Count anomalies with Code
	// - "complete": run completed (or aborted)
	Type string `yaml:"type"`

	// Module names the module (metric, status, suggestion, anomaly).
	Module string `yaml:"module,omitempty"`

	// Metric is the metric name (metric, suggestion).
	Metric string `yaml:"metric,omitempty"`

	// Equals is the expected metric value. Booleans compare as 0/1.
	Equals *float64 `yaml:"equals,omitempty"`

	// Tolerance is the allowed absolute difference for Equals.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Status is the expected module status.
	Status string `yaml:"status,omitempty"`

	// Severity is the expected suggestion severity. "none" also matches
	// a metric with no suggestion at all.
	Severity string `yaml:"severity,omitempty"`

	// Modules is the expected construction order (order).
	Modules []string `yaml:"modules,omitempty"`

	// Code is the anomaly code (anomaly).
	Code string `yaml:"code,omitempty"`

	// Count is the expected anomaly count (anomaly).
	Count *int `yaml:"count,omitempty"`

	// Complete is the expected completion flag (complete).
	Complete *bool `yaml:"complete,omitempty"`
}

// Assertion type constants.
const (
	AssertMetric     = "metric"
	AssertStatus     = "status"
	AssertSuggestion = "suggestion"
	AssertOrder      = "order"
	AssertAnomaly    = "anomaly"
	AssertComplete   = "complete"
)

// LoadScenario reads and parses a scenario YAML file.
// Relative profile and events paths are resolved against the file's
// directory. Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving profile and events paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve paths relative to base path BEFORE validation
	scenario.Profile = resolve(basePath, scenario.Profile)
	scenario.EventsFile = resolve(basePath, scenario.EventsFile)

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating paths.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Profile == "" && s.ProfileSource == "":
		return fmt.Errorf("one of profile or profile_source is required")
	case s.Profile != "" && s.ProfileSource != "":
		return fmt.Errorf("profile and profile_source are mutually exclusive")
	}
	if s.Profile != "" {
		if _, err := os.Stat(s.Profile); os.IsNotExist(err) {
			return fmt.Errorf("profile not found: %s", s.Profile)
		}
	}

	if len(s.Events) > 0 && s.EventsFile != "" {
		return fmt.Errorf("events and events_file are mutually exclusive")
	}
	if s.EventsFile != "" {
		if _, err := os.Stat(s.EventsFile); os.IsNotExist(err) {
			return fmt.Errorf("events file not found: %s", s.EventsFile)
		}
	}

	if s.MaxEvents < 0 {
		return fmt.Errorf("max_events must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMetric:
		if a.Module == "" || a.Metric == "" {
			return fmt.Errorf("assertions[%d]: module and metric are required for metric", index)
		}
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for metric", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertStatus:
		if a.Module == "" {
			return fmt.Errorf("assertions[%d]: module is required for status", index)
		}
		switch engine.Status(a.Status) {
		case engine.StatusOK, engine.StatusInactive, engine.StatusDegraded, engine.StatusUnavailable:
		default:
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertSuggestion:
		if a.Metric == "" {
			return fmt.Errorf("assertions[%d]: metric is required for suggestion", index)
		}
		switch threshold.Severity(a.Severity) {
		case threshold.SeverityNone, threshold.SeverityMinor, threshold.SeverityAverage, threshold.SeverityMajor:
		default:
			return fmt.Errorf("assertions[%d]: unknown severity %q", index, a.Severity)
		}
	case AssertOrder:
		if len(a.Modules) == 0 {
			return fmt.Errorf("assertions[%d]: modules list is required for order", index)
		}
	case AssertAnomaly:
		if a.Module == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: module and code are required for anomaly", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be set and non-negative for anomaly", index)
		}
	case AssertComplete:
		if a.Complete == nil {
			return fmt.Errorf("assertions[%d]: complete is required for complete", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
