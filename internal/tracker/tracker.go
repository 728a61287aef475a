// Package tracker provides the reusable stateful analysis modules:
// cooldown/charge tracking, resource generation and waste, and buff uptime.
//
// Trackers are ordinary engine modules. Each is built only on the
// InitContext subscribe primitive and exposes read-only queries after
// replay. Data inconsistencies in the log are clamped and recorded as
// anomalies through the engine recorder; trackers never fail a handler
// for bad data.
package tracker

import (
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

// Module names under which trackers are registered.
const (
	CooldownsModule = "cooldowns"
	ResourcesModule = "resources"
	BuffsModule     = "buffs"
)

// Anomaly codes recorded by trackers.
const (
	AnomalyChargeUnderflow   = "CHARGE_UNDERFLOW"
	AnomalyResourceUnderflow = "RESOURCE_UNDERFLOW"
	AnomalyBuffNotActive     = "BUFF_NOT_ACTIVE"
)

// MetricSource is implemented by modules exposing finalized metrics.
// Values are int64, float64 or bool.
type MetricSource interface {
	Metrics() map[string]any
}

// HasteSource supplies the haste multiplier in effect at a timestamp,
// e.g. 0.25 for 25% haste.
type HasteSource interface {
	Haste(at int64) float64
}

// bySource restricts events to those performed by entity.
// Entity 0 disables the restriction.
func bySource(entity int64) event.Predicate {
	return func(ev event.Event) bool {
		return entity == 0 || ev.SourceID == entity
	}
}

// byTarget restricts events to those landing on entity.
// Entity 0 disables the restriction.
func byTarget(entity int64) event.Predicate {
	return func(ev event.Event) bool {
		return entity == 0 || ev.TargetID == entity
	}
}

func ratio(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func suggest(set threshold.Set, metric string, actual float64, out []threshold.Suggestion) []threshold.Suggestion {
	if s, ok := set.Suggest(metric, actual); ok {
		out = append(out, s)
	}
	return out
}

func clamp(v, lo, hi int64) int64 {
	return max(lo, min(v, hi))
}
