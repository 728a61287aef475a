package store

import (
	"fmt"
	"strings"

	"github.com/roach88/combatlog/internal/event"
)

// EventQuery selects a subset of a fight's events.
//
// Zero-valued fields do not filter. Conditions combine with AND; list
// fields match any of their values.
type EventQuery struct {
	Kinds     []event.Kind
	Abilities []int64
	SourceID  int64
	TargetID  int64

	// Entity matches events whose source or target is the entity.
	Entity int64

	// From and To bound timestamps inclusively. To <= 0 leaves the range
	// open-ended.
	From int64
	To   int64

	// Limit caps the number of events, 0 for no limit.
	Limit int
}

const eventColumns = "seq, ts, kind, source_id, target_id, ability_id, amount, absorbed, overheal, " +
	"resource_type, resource_change, resource_cost, resource_max, stacks"

// Compile converts the query to parameterized SQL over one fight.
//
// Every query orders by ts ASC, seq ASC: the order replay requires.
// Values are always bound as parameters, never interpolated.
func (q EventQuery) Compile(fightID string) (string, []any, error) {
	if fightID == "" {
		return "", nil, fmt.Errorf("fight id is required")
	}
	if q.To > 0 && q.To < q.From {
		return "", nil, fmt.Errorf("invalid time range: to %d before from %d", q.To, q.From)
	}
	if q.Limit < 0 {
		return "", nil, fmt.Errorf("invalid limit %d", q.Limit)
	}

	where := []string{"fight_id = ?"}
	params := []any{fightID}

	if len(q.Kinds) > 0 {
		vals := make([]any, len(q.Kinds))
		for i, k := range q.Kinds {
			vals[i] = string(k)
		}
		where = append(where, in("kind", len(vals)))
		params = append(params, vals...)
	}
	if len(q.Abilities) > 0 {
		where = append(where, in("ability_id", len(q.Abilities)))
		for _, a := range q.Abilities {
			params = append(params, a)
		}
	}
	if q.SourceID != 0 {
		where = append(where, "source_id = ?")
		params = append(params, q.SourceID)
	}
	if q.TargetID != 0 {
		where = append(where, "target_id = ?")
		params = append(params, q.TargetID)
	}
	if q.Entity != 0 {
		where = append(where, "(source_id = ? OR target_id = ?)")
		params = append(params, q.Entity, q.Entity)
	}
	if q.From != 0 {
		where = append(where, "ts >= ?")
		params = append(params, q.From)
	}
	if q.To > 0 {
		where = append(where, "ts <= ?")
		params = append(params, q.To)
	}

	sql := fmt.Sprintf("SELECT %s FROM events WHERE %s ORDER BY ts ASC, seq ASC",
		eventColumns, strings.Join(where, " AND "))
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// in returns "column IN (?, ?, ...)" with n placeholders.
func in(column string, n int) string {
	return fmt.Sprintf("%s IN (%s)", column, strings.TrimSuffix(strings.Repeat("?, ", n), ", "))
}
