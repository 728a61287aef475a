// Package analysis contains the profile-driven analysis modules that sit on
// top of the trackers.
package analysis

import (
	"sort"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
)

// Module names.
const (
	HasteModule      = "haste"
	CastsModule      = "casts"
	EfficiencyModule = "efficiency"
	ResetsModule     = "resets"
)

// HasteBuff is a buff that grants haste while present on the entity.
type HasteBuff struct {
	Ability int64   `json:"ability" yaml:"ability"`
	Haste   float64 `json:"haste" yaml:"haste"` // 0.3 for 30%
}

// HasteConfig configures the haste module.
type HasteConfig struct {
	Base  float64     `json:"base" yaml:"base"`
	Buffs []HasteBuff `json:"buffs" yaml:"buffs"`
}

// Haste tracks the entity's haste over time: base rating combined
// multiplicatively with every active haste buff.
type Haste struct {
	cfg    HasteConfig
	start  int64
	clock  *engine.ReplayClock
	active map[int64]bool
	bonus  map[int64]float64
	order  []int64

	// changes holds the haste from each timestamp on, ordered by at.
	// Recharges are computed lazily, so queries about the past must see
	// the haste of that moment, not the latest.
	changes []hasteChange

	lastChange int64
	weighted   float64 // integral of haste over time
}

type hasteChange struct {
	at    int64
	haste float64
}

// HasteSpec returns the engine spec for the haste module.
func HasteSpec(cfg HasteConfig) engine.Spec {
	return engine.Spec{
		Name: HasteModule,
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewHaste(ic, cfg), nil
		},
	}
}

// NewHaste constructs the module and subscribes to haste buff events.
func NewHaste(ic *engine.InitContext, cfg HasteConfig) *Haste {
	info := ic.Run()
	h := &Haste{
		cfg:        cfg,
		start:      info.Start,
		clock:      ic.Clock(),
		active:     make(map[int64]bool, len(cfg.Buffs)),
		bonus:      make(map[int64]float64, len(cfg.Buffs)),
		lastChange: info.Start,
	}
	h.changes = []hasteChange{{at: info.Start, haste: cfg.Base}}

	ids := make([]int64, 0, len(cfg.Buffs))
	for _, b := range cfg.Buffs {
		if _, dup := h.bonus[b.Ability]; !dup {
			h.order = append(h.order, b.Ability)
		}
		h.bonus[b.Ability] = b.Haste
		ids = append(ids, b.Ability)
	}
	if len(ids) == 0 {
		return h
	}

	filter := event.Filter{
		Kinds:     []event.Kind{event.KindApplyBuff, event.KindRefreshBuff, event.KindRemoveBuff},
		Abilities: ids,
		TargetID:  info.EntityID,
	}
	ic.Subscribe(filter.Predicate(), h.onBuff)
	return h
}

func (h *Haste) onBuff(ev event.Event) error {
	h.accumulate(ev.Timestamp)
	h.active[ev.AbilityID] = ev.Kind != event.KindRemoveBuff
	h.record(ev.Timestamp, h.current())
	return nil
}

func (h *Haste) record(at int64, haste float64) {
	last := &h.changes[len(h.changes)-1]
	switch {
	case at <= last.at:
		last.haste = haste
	case haste != last.haste:
		h.changes = append(h.changes, hasteChange{at: at, haste: haste})
	}
}

func (h *Haste) accumulate(t int64) {
	if t > h.lastChange {
		h.weighted += h.current() * float64(t-h.lastChange)
		h.lastChange = t
	}
}

func (h *Haste) current() float64 {
	m := 1 + h.cfg.Base
	for _, id := range h.order {
		if h.active[id] {
			m *= 1 + h.bonus[id]
		}
	}
	return m - 1
}

// Haste returns the haste in effect at at. Times before the run start
// get the base haste; changes at the same timestamp as at are included.
func (h *Haste) Haste(at int64) float64 {
	i := sort.Search(len(h.changes), func(i int) bool { return h.changes[i].at > at })
	if i == 0 {
		return h.changes[0].haste
	}
	return h.changes[i-1].haste
}

// Average returns the time-weighted average haste over the run.
func (h *Haste) Average() float64 {
	end := h.clock.Now()
	span := end - h.start
	if span <= 0 {
		return h.current()
	}
	total := h.weighted
	if end > h.lastChange {
		total += h.current() * float64(end-h.lastChange)
	}
	return total / float64(span)
}

// Metrics implements tracker.MetricSource.
func (h *Haste) Metrics() map[string]any {
	return map[string]any{
		"base":    h.cfg.Base,
		"average": h.Average(),
	}
}
