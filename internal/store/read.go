package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/combatlog/internal/event"
)

const selectFight = `
	SELECT id, digest, name, source, entity, start_ts, end_ts, event_count, imported_at
	FROM fights`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFight(row rowScanner) (Fight, error) {
	var f Fight
	var importedAt string
	if err := row.Scan(&f.ID, &f.Digest, &f.Name, &f.Source, &f.Entity, &f.Start, &f.End, &f.EventCount, &importedAt); err != nil {
		return Fight{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, importedAt)
	if err != nil {
		return Fight{}, fmt.Errorf("parse imported_at %q: %w", importedAt, err)
	}
	f.ImportedAt = t
	return f, nil
}

// GetFight returns the fight with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetFight(ctx context.Context, id string) (Fight, error) {
	f, err := scanFight(s.db.QueryRowContext(ctx, selectFight+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Fight{}, fmt.Errorf("fight %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Fight{}, fmt.Errorf("read fight: %w", err)
	}
	return f, nil
}

// ListFights returns every fight, oldest import first.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListFights(ctx context.Context) ([]Fight, error) {
	rows, err := s.db.QueryContext(ctx, selectFight+`
		ORDER BY imported_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query fights: %w", err)
	}
	defer rows.Close()

	fights := []Fight{}
	for rows.Next() {
		f, err := scanFight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fight: %w", err)
		}
		fights = append(fights, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fights: %w", err)
	}
	return fights, nil
}

// ReadEvents returns the events of a fight matching q, ordered by
// timestamp then arrival sequence. A zero EventQuery returns every event.
//
// Returns ErrNotFound if the fight does not exist.
func (s *Store) ReadEvents(ctx context.Context, fightID string, q EventQuery) ([]event.Event, error) {
	if _, err := s.GetFight(ctx, fightID); err != nil {
		return nil, err
	}

	query, args, err := q.Compile(fightID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var ev event.Event
		var kind string
		if err := rows.Scan(
			&ev.Seq, &ev.Timestamp, &kind,
			&ev.SourceID, &ev.TargetID, &ev.AbilityID,
			&ev.Amount, &ev.Absorbed, &ev.Overheal,
			&ev.ResourceType, &ev.ResourceChange, &ev.ResourceCost, &ev.ResourceMax,
			&ev.Stacks,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = event.Kind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

const selectReport = `
	SELECT run_id, fight_id, profile, entity, complete, digest, body, created_at
	FROM reports`

func scanReport(row rowScanner) (StoredReport, error) {
	var r StoredReport
	var body, createdAt string
	if err := row.Scan(&r.RunID, &r.FightID, &r.Profile, &r.Entity, &r.Complete, &r.Digest, &body, &createdAt); err != nil {
		return StoredReport{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return StoredReport{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	r.Body = []byte(body)
	r.CreatedAt = t
	return r, nil
}

// ReadReport returns the report saved under runID.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadReport(ctx context.Context, runID string) (StoredReport, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, selectReport+` WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, fmt.Errorf("report %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return StoredReport{}, fmt.Errorf("read report: %w", err)
	}
	return r, nil
}

// ListReports returns the reports saved for a fight, oldest first.
func (s *Store) ListReports(ctx context.Context, fightID string) ([]StoredReport, error) {
	rows, err := s.db.QueryContext(ctx, selectReport+`
		WHERE fight_id = ?
		ORDER BY created_at ASC, run_id COLLATE BINARY ASC
	`, fightID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []StoredReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}
