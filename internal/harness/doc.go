// Package harness provides conformance testing for analysis profiles.
//
// The harness compiles a profile, replays a scenario's events through the
// engine, builds the report and evaluates assertions against it.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	profile: ../profiles/retribution.cue   # or profile_source: inline CUE
//	profile_name: retribution              # required when the file has several
//	entity: 1
//	events:
//	  - {timestamp: 0, kind: cast, source: 1, target: 2, ability: 20271}
//	events_file: opener.jsonl              # alternative to events
//	assertions:
//	  - type: metric
//	    module: resources
//	    metric: holy_power.wasted
//	    equals: 1
//	  - type: status
//	    module: buffs
//	    status: inactive
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - metric: Verifies a module metric equals a value (within tolerance)
//   - status: Verifies a module's reported status
//   - suggestion: Verifies the severity graded for a metric
//   - order: Verifies modules were constructed in the given relative order
//   - anomaly: Verifies how many anomalies with a code a module recorded
//   - complete: Verifies whether the run completed or aborted
//
// # Deterministic Testing
//
// All scenarios execute with a fixed run id (scenario.run_id, or
// "test-run-default") so the canonical report is byte-identical across
// runs and can be compared against golden files.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/waste.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
