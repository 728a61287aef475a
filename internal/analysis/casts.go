package analysis

import (
	"sort"
	"strconv"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
)

// Casts counts completed casts by the entity, per ability.
type Casts struct {
	info      engine.RunInfo
	clock     *engine.ReplayClock
	byAbility map[int64]int64
	total     int64
}

// CastsSpec returns the engine spec for the casts module.
func CastsSpec() engine.Spec {
	return engine.Spec{
		Name: CastsModule,
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewCasts(ic), nil
		},
	}
}

// NewCasts constructs the module.
func NewCasts(ic *engine.InitContext) *Casts {
	c := &Casts{
		info:      ic.Run(),
		clock:     ic.Clock(),
		byAbility: make(map[int64]int64),
	}
	filter := event.Filter{Kinds: []event.Kind{event.KindCast}, SourceID: c.info.EntityID}
	ic.Subscribe(filter.Predicate(), func(ev event.Event) error {
		c.byAbility[ev.AbilityID]++
		c.total++
		return nil
	})
	return c
}

// Count returns the casts of ability.
func (c *Casts) Count(ability int64) int64 {
	return c.byAbility[ability]
}

// Total returns all casts.
func (c *Casts) Total() int64 {
	return c.total
}

// Abilities returns every cast ability, ascending.
func (c *Casts) Abilities() []int64 {
	out := make([]int64, 0, len(c.byAbility))
	for id := range c.byAbility {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PerMinute returns casts per minute of run time.
func (c *Casts) PerMinute() float64 {
	span := c.clock.Now() - c.info.Start
	if span <= 0 {
		return 0
	}
	return float64(c.total) * 60000 / float64(span)
}

// Active reports whether the entity cast anything.
func (c *Casts) Active() bool {
	return c.total > 0
}

// Metrics implements tracker.MetricSource.
func (c *Casts) Metrics() map[string]any {
	out := map[string]any{
		"total": c.total,
		"cpm":   c.PerMinute(),
	}
	for id, n := range c.byAbility {
		out["ability."+strconv.FormatInt(id, 10)] = n
	}
	return out
}
