package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/logfile"
	"github.com/roach88/combatlog/internal/profile"
	"github.com/roach88/combatlog/internal/report"
	"github.com/roach88/combatlog/internal/store"
	"github.com/roach88/combatlog/internal/threshold"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Profile     string
	FightID     string
	Entities    []int64
	Save        bool
	MaxEvents   int
	MinSeverity string
}

// AnalyzeResult is the output of the analyze command.
type AnalyzeResult struct {
	FightID string           `json:"fight_id,omitempty"`
	Reports []*report.Report `json:"reports"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <profiles> [log-file]",
		Short: "Analyze a fight against a profile",
		Long: `Replay a fight through the modules of an analysis profile and report
metrics and threshold suggestions.

The fight comes from a log file or, with --fight, from the store. Each
--entity is analyzed in an independent run; runs execute in parallel
up to COMBATLOG_WORKERS.

Examples:
  combatlog analyze ./profiles raid.jsonl --profile retribution --entity 1
  combatlog analyze ./profiles --fight <id> --entity 1,7,9 --save
  combatlog analyze ./profiles/ret.cue dummy.yaml --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-events") {
				opts.MaxEvents = opts.Config.MaxEvents
			}
			logFile := ""
			if len(args) == 2 {
				logFile = args[1]
			}
			return runAnalyze(commandContext(cmd), opts, args[0], logFile, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "profile name (required when several are defined)")
	cmd.Flags().StringVar(&opts.FightID, "fight", "", "analyze an imported fight instead of a log file")
	cmd.Flags().Int64SliceVarP(&opts.Entities, "entity", "e", nil, "entities to analyze (default: profile or fight entity)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "store reports (imports the log file when needed)")
	cmd.Flags().IntVar(&opts.MaxEvents, "max-events", 0, "per-run event budget, 0 for unlimited (default: COMBATLOG_MAX_EVENTS)")
	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "minor", "lowest suggestion severity to print (minor|average|major)")

	return cmd
}

// fightSource is the event log and run bounds of the analyzed fight.
type fightSource struct {
	fightID string
	events  []event.Event
	start   int64
	end     int64
	entity  int64
}

func runAnalyze(ctx context.Context, opts *AnalyzeOptions, profilesPath, logFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	switch {
	case logFile == "" && opts.FightID == "":
		return NewExitError(ExitCommandError, "a log file or --fight is required")
	case logFile != "" && opts.FightID != "":
		return NewExitError(ExitCommandError, "a log file and --fight are mutually exclusive")
	}
	minSeverity := threshold.Severity(opts.MinSeverity)
	switch minSeverity {
	case threshold.SeverityMinor, threshold.SeverityAverage, threshold.SeverityMajor:
	default:
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid min severity %q: must be one of minor, average, major", opts.MinSeverity))
	}

	p, err := selectProfile(profilesPath, opts.Profile)
	if err != nil {
		_ = formatter.Error(ErrCodeAnalysis, err.Error(), nil)
		return err
	}
	formatter.VerboseLog("Using profile %s", p.Name)

	var st *store.Store
	if opts.Save || opts.FightID != "" {
		st, err = openStore(opts.RootOptions)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	src, err := loadFight(ctx, st, opts.FightID, logFile, opts.Save)
	if err != nil {
		var inputErr *event.InputError
		var decodeErr *logfile.DecodeError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fightError(formatter, err)
		case errors.As(err, &inputErr), errors.As(err, &decodeErr):
			_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid combat log", err)
		default:
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load fight", err)
		}
	}

	entities := opts.Entities
	if len(entities) == 0 {
		entity := p.Entity
		if entity == 0 {
			entity = src.entity
		}
		entities = []int64{entity}
	}

	reports, err := AnalyzeEntities(ctx, p, src.events, engine.RunInfo{Start: src.start, End: src.end}, entities, AnalyzeConfig{
		Workers:   opts.workers(),
		MaxEvents: opts.MaxEvents,
		Logger:    opts.logger(),
	})
	if err != nil {
		_ = formatter.Error(ErrCodeAnalysis, err.Error(), nil)
		return WrapExitError(ExitFailure, "analysis failed", err)
	}

	if opts.Save {
		if err := saveReports(ctx, st, src.fightID, reports); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to save reports", err)
		}
		formatter.VerboseLog("Saved %d report(s) for fight %s", len(reports), src.fightID)
	}

	if formatter.JSON() {
		return formatter.Success(AnalyzeResult{FightID: src.fightID, Reports: reports})
	}
	return printReports(cmd, reports, minSeverity)
}

// selectProfile loads profiles from path and picks one by name. name may
// be empty when exactly one profile is defined.
func selectProfile(path, name string) (*profile.Profile, error) {
	loaded, errs := profile.Load(path, profile.LoadModeFailFast)
	if len(errs) > 0 {
		var loadErr *profile.LoadError
		if errors.As(errs[0], &loadErr) && (loadErr.Code == profile.ErrCodeNotFound || loadErr.Code == profile.ErrCodeNoFiles) {
			return nil, WrapExitError(ExitCommandError, "failed to load profiles", errs[0])
		}
		return nil, WrapExitError(ExitFailure, "failed to load profiles", errs[0])
	}

	if name == "" {
		if len(loaded.Profiles) != 1 {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("%d profiles defined (%v): use --profile", len(loaded.Profiles), loaded.Names()))
		}
		return &loaded.Profiles[0], nil
	}
	p, ok := loaded.Lookup(name)
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("profile %q not found (available: %v)", name, loaded.Names()))
	}
	return p, nil
}

// loadFight reads the analyzed events from the store or a log file. With
// save set, a log file is imported so reports can reference it.
func loadFight(ctx context.Context, st *store.Store, fightID, logFile string, save bool) (fightSource, error) {
	if fightID != "" {
		fight, err := st.GetFight(ctx, fightID)
		if err != nil {
			return fightSource{}, err
		}
		events, err := st.ReadEvents(ctx, fightID, store.EventQuery{})
		if err != nil {
			return fightSource{}, err
		}
		return fightSource{fightID: fight.ID, events: events, start: fight.Start, end: fight.End, entity: fight.Entity}, nil
	}

	file, err := logfile.ReadFile(logFile)
	if err != nil {
		return fightSource{}, err
	}
	src := fightSource{events: file.Events, start: file.Fight.Start, end: file.Fight.End, entity: file.Fight.Entity}
	if save {
		res, err := importFile(ctx, st, logFile, "", 0)
		if err != nil {
			return fightSource{}, err
		}
		src.fightID = res.Fight.ID
	}
	return src, nil
}

// AnalyzeConfig tunes AnalyzeEntities.
type AnalyzeConfig struct {
	Workers   int
	MaxEvents int
	Logger    *slog.Logger
}

// AnalyzeEntities runs p once per entity and returns the reports in
// entity order.
//
// Runs are independent: each gets its own engine and module instances, so
// they execute in parallel on up to cfg.Workers goroutines. The first
// run that cannot start (invalid profile, malformed events) cancels the
// rest.
func AnalyzeEntities(ctx context.Context, p *profile.Profile, events []event.Event, bounds engine.RunInfo, entities []int64, cfg AnalyzeConfig) ([]*report.Report, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reports := make([]*report.Report, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))

	for i, entity := range entities {
		g.Go(func() error {
			engineOpts := []engine.EngineOption{engine.WithLogger(logger.With("entity", entity))}
			if cfg.MaxEvents > 0 {
				engineOpts = append(engineOpts, engine.WithMaxEvents(cfg.MaxEvents))
			}
			eng, err := profile.NewEngine(p, engineOpts...)
			if err != nil {
				return err
			}

			info := bounds
			info.EntityID = entity
			res, err := eng.Run(gctx, info, events)
			if err != nil {
				return fmt.Errorf("entity %d: %w", entity, err)
			}

			rep := report.Build(res, p.Thresholds)
			rep.Profile = p.Name
			reports[i] = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func saveReports(ctx context.Context, st *store.Store, fightID string, reports []*report.Report) error {
	for _, rep := range reports {
		body, err := rep.Canonical()
		if err != nil {
			return err
		}
		digest, err := rep.Digest()
		if err != nil {
			return err
		}
		if err := st.SaveReport(ctx, store.StoredReport{
			RunID:    rep.RunID,
			FightID:  fightID,
			Profile:  rep.Profile,
			Entity:   rep.Run.EntityID,
			Complete: rep.Complete,
			Digest:   digest,
			Body:     body,
		}); err != nil {
			return err
		}
	}
	return nil
}

func printReports(cmd *cobra.Command, reports []*report.Report, floor threshold.Severity) error {
	w := cmd.OutOrStdout()
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		state := "complete"
		if !rep.Complete {
			state = "aborted: " + rep.Abort
		}
		fmt.Fprintf(w, "Profile %s, entity %d (run %s)\n", rep.Profile, rep.Run.EntityID, rep.RunID)
		fmt.Fprintf(w, "  %d/%d events, %s\n", rep.EventsProcessed, rep.EventsTotal, state)

		for _, m := range rep.Modules {
			fmt.Fprintf(w, "  %-12s %s\n", m.Name, m.Status)
			if m.Error != "" {
				fmt.Fprintf(w, "      %s\n", m.Error)
			}
			for _, f := range m.Failures {
				fmt.Fprintf(w, "      failed at #%d@%d (%s): %s\n", f.Seq, f.Timestamp, f.Kind, f.Error)
			}
			keys := make([]string, 0, len(m.Metrics))
			for k := range m.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "      %s = %v\n", k, m.Metrics[k])
			}
		}

		if sugs := rep.Suggestions(floor); len(sugs) > 0 {
			fmt.Fprintln(w, "  Suggestions:")
			for _, s := range sugs {
				fmt.Fprintf(w, "    [%s] %s = %s\n", s.Severity, s.Metric, s.Display)
			}
		}
		if len(rep.Anomalies) > 0 {
			fmt.Fprintf(w, "  Anomalies: %d\n", len(rep.Anomalies))
			for _, a := range rep.Anomalies {
				fmt.Fprintf(w, "    %s %s: %s\n", a.Module, a.Code, a.Message)
			}
		}
	}
	return nil
}
