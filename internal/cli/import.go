package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/logfile"
	"github.com/roach88/combatlog/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Name   string
	Entity int64
}

// ImportedFight is one line of import output.
type ImportedFight struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Source  string `json:"source"`
	Events  int    `json:"events"`
	Created bool   `json:"created"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <log-file>...",
		Short: "Import combat logs into the store",
		Long: `Import JSON Lines (.jsonl, .ndjson) or YAML (.yaml, .yml) combat logs.

Imports are idempotent: a log whose events were already imported
resolves to the existing fight and writes nothing.

Examples:
  combatlog import raid.jsonl
  combatlog import dummy.yaml --name "Training Dummy" --entity 1
  combatlog import logs/*.jsonl --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(commandContext(cmd), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "fight name (default: from the file, or the file name)")
	cmd.Flags().Int64Var(&opts.Entity, "entity", 0, "default analyzed entity (default: from the file)")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	imported := make([]ImportedFight, 0, len(paths))
	for _, path := range paths {
		res, err := importFile(ctx, st, path, opts.Name, opts.Entity)
		if err != nil {
			var inputErr *event.InputError
			var decodeErr *logfile.DecodeError
			if errors.As(err, &inputErr) || errors.As(err, &decodeErr) {
				_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid combat log", err)
			}
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "import failed", err)
		}
		opts.logger().Info("fight imported",
			"id", res.Fight.ID,
			"source", path,
			"events", res.Fight.EventCount,
			"created", res.Created,
		)
		imported = append(imported, ImportedFight{
			ID:      res.Fight.ID,
			Name:    res.Fight.Name,
			Source:  path,
			Events:  res.Fight.EventCount,
			Created: res.Created,
		})
	}

	if formatter.JSON() {
		return formatter.Success(imported)
	}
	w := cmd.OutOrStdout()
	for _, f := range imported {
		if f.Created {
			fmt.Fprintf(w, "✓ %s  %s (%d events) from %s\n", f.ID, f.Name, f.Events, f.Source)
		} else {
			fmt.Fprintf(w, "= %s  %s already imported (%s)\n", f.ID, f.Name, f.Source)
		}
	}
	return nil
}

// importFile decodes path and imports it. name and entity override the
// file's fight metadata when set.
func importFile(ctx context.Context, st *store.Store, path, name string, entity int64) (store.ImportResult, error) {
	file, err := logfile.ReadFile(path)
	if err != nil {
		return store.ImportResult{}, err
	}

	meta := store.NewFight{
		Name:   file.Fight.Name,
		Source: path,
		Entity: file.Fight.Entity,
		Start:  file.Fight.Start,
		End:    file.Fight.End,
	}
	if name != "" {
		meta.Name = name
	}
	if meta.Name == "" {
		meta.Name = fileStem(path)
	}
	if entity != 0 {
		meta.Entity = entity
	}
	return st.ImportFight(ctx, meta, file.Events)
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func openStore(opts *RootOptions) (*store.Store, error) {
	if opts.Database == "" {
		return nil, NewExitError(ExitCommandError, "database path is required (--db or COMBATLOG_DB_PATH)")
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
