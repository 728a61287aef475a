package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/logfile"
	"github.com/roach88/combatlog/internal/profile"
	"github.com/roach88/combatlog/internal/report"
	"github.com/roach88/combatlog/internal/testutil"
)

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's profile
//  2. Load its events (inline or from events_file)
//  3. Replay them through the engine with a fixed run id
//  4. Build the report and evaluate assertions against it
//
// Assertion failures are reported through Result; the returned error is
// for scenarios that could not run at all (bad profile, bad events,
// configuration errors).
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	p, err := loadProfile(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	events, err := loadEvents(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	engineOpts := []engine.EngineOption{
		engine.WithLogger(o.logger),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(scenario.RunID)),
	}
	if scenario.MaxEvents > 0 {
		engineOpts = append(engineOpts, engine.WithMaxEvents(scenario.MaxEvents))
	}
	eng, err := profile.NewEngine(p, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	entity := scenario.Entity
	if entity == 0 {
		entity = p.Entity
	}
	res, err := eng.Run(ctx, engine.RunInfo{EntityID: entity, Start: scenario.Start, End: scenario.End}, events)
	if err != nil {
		return nil, fmt.Errorf("failed to run: %w", err)
	}

	rep := report.Build(res, p.Thresholds)
	rep.Profile = p.Name

	result := NewResult()
	result.Report = rep
	for _, msg := range EvaluateAssertions(rep, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads the scenario at path and runs it.
func RunFile(path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario, opts...)
	return scenario, result, err
}

func loadProfile(s *Scenario) (*profile.Profile, error) {
	var profiles []profile.Profile
	if s.ProfileSource != "" {
		compiled, err := profile.CompileString(s.ProfileSource, s.Name+".cue")
		if err != nil {
			return nil, err
		}
		profiles = compiled
	} else {
		loaded, errs := profile.Load(s.Profile, profile.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, errs[0]
		}
		profiles = loaded.Profiles
	}

	if s.ProfileName == "" {
		if len(profiles) != 1 {
			return nil, fmt.Errorf("%d profiles defined, set profile_name to choose one", len(profiles))
		}
		return &profiles[0], nil
	}
	for i := range profiles {
		if profiles[i].Name == s.ProfileName {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", s.ProfileName)
}

func loadEvents(s *Scenario) ([]event.Event, error) {
	if s.EventsFile == "" {
		return s.Events, nil
	}
	file, err := logfile.ReadFile(s.EventsFile)
	if err != nil {
		return nil, err
	}
	return file.Events, nil
}
