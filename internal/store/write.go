package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/combatlog/internal/canon"
	"github.com/roach88/combatlog/internal/event"
)

// NewFight describes a log being imported.
type NewFight struct {
	Name   string
	Source string // e.g. the file the events came from
	Entity int64  // default analyzed entity, 0 for none

	// Start and End bound the fight. When both are zero the bounds of the
	// event log are used.
	Start int64
	End   int64
}

// Fight is an imported combat log.
type Fight struct {
	ID         string    `json:"id"`
	Digest     string    `json:"digest"`
	Name       string    `json:"name"`
	Source     string    `json:"source,omitempty"`
	Entity     int64     `json:"entity,omitempty"`
	Start      int64     `json:"start"`
	End        int64     `json:"end"`
	EventCount int       `json:"event_count"`
	ImportedAt time.Time `json:"imported_at"`
}

// ImportResult reports the outcome of ImportFight.
type ImportResult struct {
	Fight   Fight
	Created bool // false when an identical log was already imported
}

// Digest returns the content digest of an event log. Events are normalized
// through event.NewLog first, so arrival Seq values in the input are
// irrelevant.
func Digest(events []event.Event) (string, error) {
	log, err := event.NewLog(events)
	if err != nil {
		return "", err
	}
	return digestLog(log)
}

func digestLog(log *event.Log) (string, error) {
	arr := make(canon.Array, 0, log.Len())
	for _, ev := range log.Events() {
		arr = append(arr, canon.Object{
			"seq":             ev.Seq,
			"ts":              ev.Timestamp,
			"kind":            string(ev.Kind),
			"source":          ev.SourceID,
			"target":          ev.TargetID,
			"ability":         ev.AbilityID,
			"amount":          ev.Amount,
			"absorbed":        ev.Absorbed,
			"overheal":        ev.Overheal,
			"resource_type":   int64(ev.ResourceType),
			"resource_change": ev.ResourceChange,
			"resource_cost":   ev.ResourceCost,
			"resource_max":    ev.ResourceMax,
			"stacks":          int64(ev.Stacks),
		})
	}
	return canon.Digest(canon.DomainEventLog, arr)
}

// ImportFight stores events as a new fight.
//
// Imports are idempotent by content: importing a log whose digest already
// exists returns the existing fight with Created=false and writes nothing.
// The events are validated with event.NewLog; an invalid sequence is
// returned as *event.InputError.
func (s *Store) ImportFight(ctx context.Context, meta NewFight, events []event.Event) (ImportResult, error) {
	log, err := event.NewLog(events)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: %w", err)
	}
	digest, err := digestLog(log)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: %w", err)
	}

	start, end := meta.Start, meta.End
	if start == 0 && end == 0 {
		start, end = log.Bounds()
	}
	if end < start {
		return ImportResult{}, fmt.Errorf("import fight: end %d before start %d", end, start)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	fight := Fight{
		ID:         s.ids.Generate(),
		Digest:     digest,
		Name:       meta.Name,
		Source:     meta.Source,
		Entity:     meta.Entity,
		Start:      start,
		End:        end,
		EventCount: log.Len(),
		ImportedAt: s.now().UTC(),
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO fights
		(id, digest, name, source, entity, start_ts, end_ts, event_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING
	`,
		fight.ID,
		fight.Digest,
		fight.Name,
		fight.Source,
		fight.Entity,
		fight.Start,
		fight.End,
		fight.EventCount,
		fight.ImportedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		existing, err := scanFight(tx.QueryRowContext(ctx, selectFight+` WHERE digest = ?`, digest))
		if err != nil {
			return ImportResult{}, fmt.Errorf("import fight: select existing: %w", err)
		}
		return ImportResult{Fight: existing, Created: false}, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(fight_id, seq, ts, kind, source_id, target_id, ability_id, amount, absorbed, overheal,
		 resource_type, resource_change, resource_cost, resource_max, stacks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import fight: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range log.Events() {
		if _, err := stmt.ExecContext(ctx,
			fight.ID, ev.Seq, ev.Timestamp, string(ev.Kind),
			ev.SourceID, ev.TargetID, ev.AbilityID,
			ev.Amount, ev.Absorbed, ev.Overheal,
			ev.ResourceType, ev.ResourceChange, ev.ResourceCost, ev.ResourceMax,
			ev.Stacks,
		); err != nil {
			return ImportResult{}, fmt.Errorf("import fight: insert event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("import fight: commit: %w", err)
	}
	return ImportResult{Fight: fight, Created: true}, nil
}

// DeleteFight removes a fight with its events and reports.
// Returns ErrNotFound if the fight does not exist.
func (s *Store) DeleteFight(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM fights WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fight: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fight: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete fight %s: %w", id, ErrNotFound)
	}
	return nil
}

// StoredReport is a persisted analysis report.
type StoredReport struct {
	RunID     string    `json:"run_id"`
	FightID   string    `json:"fight_id"`
	Profile   string    `json:"profile,omitempty"`
	Entity    int64     `json:"entity,omitempty"`
	Complete  bool      `json:"complete"`
	Digest    string    `json:"digest"`
	Body      []byte    `json:"-"` // canonical JSON
	CreatedAt time.Time `json:"created_at"`
}

// SaveReport persists a report. Saving the same run id twice is a no-op.
// CreatedAt is set from the store clock when zero.
func (s *Store) SaveReport(ctx context.Context, r StoredReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports
		(run_id, fight_id, profile, entity, complete, digest, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.RunID,
		r.FightID,
		r.Profile,
		r.Entity,
		r.Complete,
		r.Digest,
		string(r.Body),
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("save report: fight %s: %w", r.FightID, ErrNotFound)
		}
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
