package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/store"
)

// NewFightsCommand creates the fights command group.
func NewFightsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fights",
		Short: "Inspect imported fights",
	}
	cmd.AddCommand(newFightsListCommand(rootOpts))
	cmd.AddCommand(newFightsShowCommand(rootOpts))
	cmd.AddCommand(newFightsEventsCommand(rootOpts))
	cmd.AddCommand(newFightsRemoveCommand(rootOpts))
	return cmd
}

func newFightsListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List imported fights",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			fights, err := st.ListFights(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list fights", err)
			}
			if formatter.JSON() {
				return formatter.Success(fights)
			}
			if len(fights) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No fights imported.")
				return nil
			}
			tw := formatter.Table()
			fmt.Fprintln(tw, "ID\tNAME\tEVENTS\tDURATION\tIMPORTED")
			for _, f := range fights {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					f.ID, f.Name, f.EventCount,
					time.Duration(f.End-f.Start)*time.Millisecond,
					f.ImportedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

// FightDetail is the output of fights show.
type FightDetail struct {
	Fight   store.Fight          `json:"fight"`
	Reports []store.StoredReport `json:"reports"`
}

func newFightsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <fight-id>",
		Short:         "Show a fight and its saved reports",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			ctx := commandContext(cmd)
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			fight, err := st.GetFight(ctx, args[0])
			if err != nil {
				return fightError(formatter, err)
			}
			reports, err := st.ListReports(ctx, fight.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list reports", err)
			}

			if formatter.JSON() {
				return formatter.Success(FightDetail{Fight: fight, Reports: reports})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Fight:    %s\n", fight.ID)
			fmt.Fprintf(w, "Name:     %s\n", fight.Name)
			fmt.Fprintf(w, "Source:   %s\n", fight.Source)
			fmt.Fprintf(w, "Entity:   %d\n", fight.Entity)
			fmt.Fprintf(w, "Span:     %d - %d ms\n", fight.Start, fight.End)
			fmt.Fprintf(w, "Events:   %d\n", fight.EventCount)
			fmt.Fprintf(w, "Digest:   %s\n", fight.Digest)
			fmt.Fprintf(w, "Reports:  %d\n", len(reports))
			for _, r := range reports {
				fmt.Fprintf(w, "  %s  profile=%s entity=%d complete=%t\n", r.RunID, r.Profile, r.Entity, r.Complete)
			}
			return nil
		},
	}
}

// EventsOptions holds flags for fights events.
type EventsOptions struct {
	*RootOptions
	Kinds     []string
	Abilities []int64
	Entity    int64
	From      int64
	To        int64
	Limit     int
}

func newFightsEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <fight-id>",
		Short: "Print a fight's events in replay order",
		Long: `Print the events of an imported fight, ordered by timestamp then
arrival sequence.

Examples:
  combatlog fights events <id> --kind cast --entity 1
  combatlog fights events <id> --ability 31884,20271 --from 0 --to 30000
  combatlog fights events <id> --limit 20 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFightEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter by event kind")
	cmd.Flags().Int64SliceVar(&opts.Abilities, "ability", nil, "filter by ability id")
	cmd.Flags().Int64Var(&opts.Entity, "entity", 0, "filter by source or target entity")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first timestamp (ms, inclusive)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last timestamp (ms, inclusive, 0 for open)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events")

	return cmd
}

func runFightEvents(opts *EventsOptions, fightID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	q := store.EventQuery{
		Abilities: opts.Abilities,
		Entity:    opts.Entity,
		From:      opts.From,
		To:        opts.To,
		Limit:     opts.Limit,
	}
	for _, k := range opts.Kinds {
		q.Kinds = append(q.Kinds, event.Kind(k))
	}

	events, err := st.ReadEvents(commandContext(cmd), fightID, q)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fightError(formatter, err)
		}
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if formatter.JSON() {
		return formatter.Success(events)
	}
	for _, ev := range events {
		fmt.Fprintln(cmd.OutOrStdout(), ev.String())
	}
	return nil
}

func newFightsRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <fight-id>...",
		Short:         "Delete fights with their events and reports",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			ctx := commandContext(cmd)
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range args {
				if err := st.DeleteFight(ctx, id); err != nil {
					return fightError(formatter, err)
				}
				opts.logger().Info("fight deleted", "id", id)
			}
			if formatter.JSON() {
				return formatter.Success(map[string]any{"deleted": args})
			}
			for _, id := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", id)
			}
			return nil
		},
	}
}

// fightError reports a store lookup failure, mapping ErrNotFound to its
// own error code.
func fightError(formatter *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "fight not found", err)
	}
	_ = formatter.Error(ErrCodeStore, err.Error(), nil)
	return WrapExitError(ExitCommandError, "store error", err)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
