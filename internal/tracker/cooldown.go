package tracker

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

// CooldownConfig declares one trackable ability.
type CooldownConfig struct {
	Name     string `json:"name" yaml:"name"`
	Ability  int64  `json:"ability" yaml:"ability"`
	Duration int64  `json:"duration" yaml:"duration"` // ms, before haste
	Charges  int    `json:"charges" yaml:"charges"`   // 0 is treated as 1
	Hasted   bool   `json:"hasted" yaml:"hasted"`
}

// CooldownsConfig configures the cooldowns module.
type CooldownsConfig struct {
	Abilities []CooldownConfig

	// HasteModule, when set, names the dependency supplying haste for
	// hasted cooldowns.
	HasteModule string

	Thresholds threshold.Set
}

// Phase is the state of a trackable ability.
type Phase string

const (
	PhaseAvailable  Phase = "available"
	PhaseOnCooldown Phase = "oncooldown"
)

// CooldownState is a point-in-time view of one ability.
//
// Phase is Available only when every charge is restored. EndsAt is the
// time the next charge comes back and is zero when Available.
type CooldownState struct {
	Ability    int64 `json:"ability"`
	Phase      Phase `json:"phase"`
	Charges    int   `json:"charges"`
	MaxCharges int   `json:"max_charges"`
	EndsAt     int64 `json:"ends_at,omitempty"`
}

// cooldown is the per-ability state machine.
//
// INVARIANTS:
//   - 0 <= charges <= max
//   - endsAt is meaningful only while charges < max
//   - endsAt never decreases except through reduce/reset
type cooldown struct {
	cfg        CooldownConfig
	max        int
	charges    int
	endsAt     int64
	cappedMs   int64 // time spent with every charge available
	cappedFrom int64
	casts      []int64
}

// Cooldowns tracks ability availability and charges for the analyzed
// entity.
type Cooldowns struct {
	cfg       CooldownsConfig
	info      engine.RunInfo
	clock     *engine.ReplayClock
	recorder  *engine.Recorder
	haste     HasteSource
	abilities map[int64]*cooldown
	order     []int64
}

// CooldownsSpec returns the engine spec for the cooldowns module.
func CooldownsSpec(cfg CooldownsConfig) engine.Spec {
	var deps []string
	if cfg.HasteModule != "" {
		deps = []string{cfg.HasteModule}
	}
	return engine.Spec{
		Name:         CooldownsModule,
		Dependencies: deps,
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewCooldowns(ic, cfg)
		},
	}
}

// NewCooldowns constructs the module and subscribes it to the entity's casts.
func NewCooldowns(ic *engine.InitContext, cfg CooldownsConfig) (*Cooldowns, error) {
	c := &Cooldowns{
		cfg:       cfg,
		info:      ic.Run(),
		clock:     ic.Clock(),
		recorder:  ic.Recorder(),
		abilities: make(map[int64]*cooldown, len(cfg.Abilities)),
	}

	if cfg.HasteModule != "" {
		h, err := engine.Dependency[HasteSource](ic, cfg.HasteModule)
		if err != nil {
			return nil, err
		}
		c.haste = h
	}

	ids := make([]int64, 0, len(cfg.Abilities))
	for _, a := range cfg.Abilities {
		if a.Duration <= 0 {
			return nil, fmt.Errorf("cooldown %q: duration must be positive, got %d", a.Name, a.Duration)
		}
		if _, dup := c.abilities[a.Ability]; dup {
			return nil, fmt.Errorf("cooldown %q: ability %d tracked twice", a.Name, a.Ability)
		}
		maxCharges := max(a.Charges, 1)
		c.abilities[a.Ability] = &cooldown{
			cfg:        a,
			max:        maxCharges,
			charges:    maxCharges,
			cappedFrom: c.info.Start,
		}
		c.order = append(c.order, a.Ability)
		ids = append(ids, a.Ability)
	}

	if len(ids) == 0 {
		ic.Deactivate()
		return c, nil
	}

	filter := event.Filter{Kinds: []event.Kind{event.KindCast}, Abilities: ids}
	ic.Subscribe(event.And(filter.Predicate(), bySource(c.info.EntityID)), c.onCast)
	return c, nil
}

func (c *Cooldowns) onCast(ev event.Event) error {
	cd := c.abilities[ev.AbilityID]
	c.advance(cd, ev.Timestamp)

	cd.casts = append(cd.casts, ev.Timestamp)

	if cd.charges == 0 {
		// Cast while on cooldown: the log disagrees with our durations.
		c.recorder.Record(AnomalyChargeUnderflow,
			"%s (%d) cast at %d with no charges; next charge at %d",
			cd.cfg.Name, cd.cfg.Ability, ev.Timestamp, cd.endsAt)
		return nil
	}

	if cd.charges == cd.max {
		cd.cappedMs += max(ev.Timestamp-cd.cappedFrom, 0)
		cd.endsAt = ev.Timestamp + c.effectiveDuration(cd, ev.Timestamp)
	}
	cd.charges--
	return nil
}

// advance restores charges whose recharge completed at or before at.
func (c *Cooldowns) advance(cd *cooldown, at int64) {
	for cd.charges < cd.max && at >= cd.endsAt {
		cd.charges++
		if cd.charges < cd.max {
			cd.endsAt += c.effectiveDuration(cd, cd.endsAt)
		} else {
			cd.cappedFrom = cd.endsAt
		}
	}
}

// effectiveDuration applies haste at the moment the recharge starts.
func (c *Cooldowns) effectiveDuration(cd *cooldown, at int64) int64 {
	if !cd.cfg.Hasted || c.haste == nil {
		return cd.cfg.Duration
	}
	h := c.haste.Haste(at)
	if h <= -1 || math.IsNaN(h) {
		return cd.cfg.Duration
	}
	return int64(math.Round(float64(cd.cfg.Duration) / (1 + h)))
}

var errUnknownAbility = errors.New("ability not tracked")

func (c *Cooldowns) lookup(ability int64) (*cooldown, error) {
	cd, ok := c.abilities[ability]
	if !ok {
		return nil, fmt.Errorf("cooldown %d: %w", ability, errUnknownAbility)
	}
	return cd, nil
}

// IsTracked reports whether ability is configured.
func (c *Cooldowns) IsTracked(ability int64) bool {
	_, ok := c.abilities[ability]
	return ok
}

// State returns the state of ability at time at. Queries never mutate the
// tracker: restoration is evaluated on a copy.
func (c *Cooldowns) State(ability, at int64) (CooldownState, bool) {
	cd, ok := c.abilities[ability]
	if !ok {
		return CooldownState{}, false
	}
	view := *cd
	c.advance(&view, at)

	st := CooldownState{
		Ability:    ability,
		Phase:      PhaseAvailable,
		Charges:    view.charges,
		MaxCharges: view.max,
	}
	if view.charges < view.max {
		st.Phase = PhaseOnCooldown
		st.EndsAt = view.endsAt
	}
	return st, true
}

// IsAvailable reports whether at least one charge of ability is ready at at.
func (c *Cooldowns) IsAvailable(ability, at int64) bool {
	st, ok := c.State(ability, at)
	return ok && st.Charges > 0
}

// ChargesAvailable returns the ready charges of ability at at.
func (c *Cooldowns) ChargesAvailable(ability, at int64) int {
	st, _ := c.State(ability, at)
	return st.Charges
}

// Remaining returns the time until the next charge is restored, or 0 when
// all charges are available.
func (c *Cooldowns) Remaining(ability, at int64) int64 {
	st, ok := c.State(ability, at)
	if !ok || st.Phase == PhaseAvailable {
		return 0
	}
	return st.EndsAt - at
}

// Casts returns the cast timestamps of ability.
func (c *Cooldowns) Casts(ability int64) []int64 {
	cd, ok := c.abilities[ability]
	if !ok {
		return nil
	}
	out := make([]int64, len(cd.casts))
	copy(out, cd.casts)
	return out
}

// Reduce shortens the running recharge of ability by amount ms.
// The recharge never ends before at.
func (c *Cooldowns) Reduce(ability, amount, at int64) error {
	cd, err := c.lookup(ability)
	if err != nil {
		return err
	}
	c.advance(cd, at)
	if cd.charges < cd.max && amount > 0 {
		cd.endsAt = max(cd.endsAt-amount, at)
		c.advance(cd, at)
	}
	return nil
}

// Reset finishes the running recharge of ability immediately, restoring
// one charge.
func (c *Cooldowns) Reset(ability, at int64) error {
	cd, err := c.lookup(ability)
	if err != nil {
		return err
	}
	c.advance(cd, at)
	if cd.charges < cd.max {
		cd.endsAt = at
		c.advance(cd, at)
	}
	return nil
}

// Extend pushes the running recharge of ability later by amount ms.
func (c *Cooldowns) Extend(ability, amount, at int64) error {
	cd, err := c.lookup(ability)
	if err != nil {
		return err
	}
	c.advance(cd, at)
	if cd.charges < cd.max && amount > 0 {
		cd.endsAt += amount
	}
	return nil
}

// CappedTime returns the time ability spent with every charge available
// between run start and at.
func (c *Cooldowns) CappedTime(ability, at int64) int64 {
	cd, ok := c.abilities[ability]
	if !ok {
		return 0
	}
	view := *cd
	c.advance(&view, at)
	capped := view.cappedMs
	if view.charges == view.max && at > view.cappedFrom {
		capped += at - view.cappedFrom
	}
	return capped
}

// MaxPossibleCasts estimates how many casts of ability fit in the run:
// every charge once plus one per full recharge, using the haste in effect
// at run start.
func (c *Cooldowns) MaxPossibleCasts(ability int64) int {
	cd, ok := c.abilities[ability]
	if !ok {
		return 0
	}
	d := c.effectiveDuration(cd, c.info.Start)
	if d <= 0 {
		return cd.max
	}
	end := c.clock.Now()
	return cd.max + int((end-c.info.Start)/d)
}

// Config returns the tracked abilities in configuration order.
func (c *Cooldowns) Config() []CooldownConfig {
	out := make([]CooldownConfig, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.abilities[id].cfg)
	}
	return out
}

// Active reports whether any tracked ability was cast.
func (c *Cooldowns) Active() bool {
	for _, cd := range c.abilities {
		if len(cd.casts) > 0 {
			return true
		}
	}
	return false
}

// Metrics implements MetricSource.
func (c *Cooldowns) Metrics() map[string]any {
	end := c.clock.Now()
	out := make(map[string]any, len(c.order)*3)
	for _, id := range c.order {
		cd := c.abilities[id]
		name := cd.cfg.Name
		out[name+".casts"] = int64(len(cd.casts))
		out[name+".max_casts"] = int64(c.MaxPossibleCasts(id))
		out[name+".capped_ms"] = c.CappedTime(id, end)
	}
	return out
}

// Suggestions implements threshold.Suggester over "<name>.capped_ratio".
func (c *Cooldowns) Suggestions() []threshold.Suggestion {
	end := c.clock.Now()
	var out []threshold.Suggestion
	for _, id := range c.order {
		cd := c.abilities[id]
		capped := ratio(c.CappedTime(id, end), end-c.info.Start)
		out = suggest(c.cfg.Thresholds, cd.cfg.Name+".capped_ratio", capped, out)
	}
	return out
}
