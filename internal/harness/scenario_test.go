package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a temp scenario file and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const inlineProfile = `
profile_source: |
  profile: p: pools: [{name: "rage", type: 1, capacity: 100}]
`

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/retribution_opener.yaml")
	require.NoError(t, err)

	assert.Equal(t, "retribution_opener", scenario.Name)
	assert.Equal(t, "retribution", scenario.ProfileName)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "../../../../testdata/profiles"), scenario.Profile)
	assert.Len(t, scenario.Events, 7)
	assert.Equal(t, int64(3), scenario.Events[2].ResourceChange)
	assert.Len(t, scenario.Assertions, 7)
}

func TestLoadScenario_InlineProfile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/mana_overflow.yaml")
	require.NoError(t, err)

	assert.Empty(t, scenario.Profile)
	assert.Contains(t, scenario.ProfileSource, `name: "mana"`)
	require.NotNil(t, scenario.Assertions[0].Equals)
	assert.Equal(t, 0.5, *scenario.Assertions[0].Equals)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "unknown field"
`+inlineProfile+`
assertion:
  - type: complete
    complete: true
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_ResolvesEventsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log.jsonl"), []byte(`{"timestamp": 0, "kind": "cast"}`+"\n"), 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from_file
description: "events from a file"
`+inlineProfile+`
events_file: log.jsonl
assertions:
  - type: complete
    complete: true
`), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "log.jsonl"), scenario.EventsFile)
}

func TestValidateScenario(t *testing.T) {
	one := 1.0
	yes := true
	count := 0
	neg := -1

	valid := func() *Scenario {
		return &Scenario{
			Name:          "s",
			Description:   "d",
			ProfileSource: "profile: p: {}",
			Assertions:    []Assertion{{Type: AssertComplete, Complete: &yes}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		msg    string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no profile", func(s *Scenario) { s.ProfileSource = "" }, "one of profile or profile_source"},
		{"both profiles", func(s *Scenario) { s.Profile = "x.cue" }, "mutually exclusive"},
		{"missing profile", func(s *Scenario) { s.ProfileSource, s.Profile = "", "missing.cue" }, "profile not found"},
		{"missing events file", func(s *Scenario) { s.EventsFile = "missing.jsonl" }, "events file not found"},
		{"negative max events", func(s *Scenario) { s.MaxEvents = -1 }, "max_events"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"no type", func(s *Scenario) { s.Assertions = []Assertion{{}} }, "type is required"},
		{"unknown type", func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace"}} }, "unknown assertion type"},
		{"metric without equals", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertMetric, Module: "m", Metric: "x"}}
		}, "equals is required"},
		{"metric negative tolerance", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertMetric, Module: "m", Metric: "x", Equals: &one, Tolerance: -1}}
		}, "tolerance"},
		{"bad status", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertStatus, Module: "m", Status: "broken"}}
		}, "unknown status"},
		{"bad severity", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertSuggestion, Metric: "x", Severity: "critical"}}
		}, "unknown severity"},
		{"empty order", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertOrder}} }, "modules list is required"},
		{"anomaly without count", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertAnomaly, Module: "m", Code: "C"}}
		}, "count must be set"},
		{"anomaly negative count", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertAnomaly, Module: "m", Code: "C", Count: &neg}}
		}, "count must be set"},
		{"anomaly ok", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertAnomaly, Module: "m", Code: "C", Count: &count}}
		}, ""},
		{"complete without value", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertComplete}}
		}, "complete is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.msg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
