package tracker

import (
	"fmt"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

// RefreshPolicy decides the new expiry when an active buff is reapplied.
type RefreshPolicy string

const (
	// RefreshReset restarts the full duration from the refresh.
	RefreshReset RefreshPolicy = "reset"

	// RefreshExtend adds the full duration to the remaining time.
	RefreshExtend RefreshPolicy = "extend"

	// RefreshPandemic restarts the duration and carries over up to 30% of
	// it from the remaining time.
	RefreshPandemic RefreshPolicy = "pandemic"
)

// pandemicPercent is the share of the base duration a pandemic refresh
// may carry over.
const pandemicPercent = 30

// BuffConfig declares one tracked buff.
type BuffConfig struct {
	Name    string `json:"name" yaml:"name"`
	Ability int64  `json:"ability" yaml:"ability"`

	// Duration enables implicit expiry when positive. With zero duration
	// the buff lasts until an explicit remove or the end of the run.
	Duration  int64         `json:"duration" yaml:"duration"`
	Refresh   RefreshPolicy `json:"refresh" yaml:"refresh"`
	MaxStacks int           `json:"max_stacks" yaml:"max_stacks"`
}

// BuffsConfig configures the buffs module.
type BuffsConfig struct {
	Buffs      []BuffConfig
	Thresholds threshold.Set
}

// Window is one continuous period during which a buff was present.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// buff accounts time spent at each stack level.
//
// INVARIANTS:
//   - stacks == 0 iff the buff is not present
//   - lastChange never decreases
//   - every accounted instant lies in [run start, run end]
type buff struct {
	cfg          BuffConfig
	stacks       int
	expiresAt    int64 // 0 when the buff has no duration or is absent
	lastChange   int64
	openedAt     int64
	atStacks     map[int]int64
	windows      []Window
	seen         bool
	applications int
	refreshes    int
	peakStacks   int
}

// Buffs tracks buff presence and stack-aware uptime on the entity.
type Buffs struct {
	cfg      BuffsConfig
	info     engine.RunInfo
	clock    *engine.ReplayClock
	recorder *engine.Recorder
	buffs    map[int64]*buff
	order    []int64
}

// BuffsSpec returns the engine spec for the buffs module.
func BuffsSpec(cfg BuffsConfig) engine.Spec {
	return engine.Spec{
		Name: BuffsModule,
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewBuffs(ic, cfg)
		},
	}
}

// NewBuffs constructs the module and subscribes it to buff events landing
// on the entity.
func NewBuffs(ic *engine.InitContext, cfg BuffsConfig) (*Buffs, error) {
	b := &Buffs{
		cfg:      cfg,
		info:     ic.Run(),
		clock:    ic.Clock(),
		recorder: ic.Recorder(),
		buffs:    make(map[int64]*buff, len(cfg.Buffs)),
	}

	ids := make([]int64, 0, len(cfg.Buffs))
	for _, bc := range cfg.Buffs {
		if bc.Duration < 0 {
			return nil, fmt.Errorf("buff %q: negative duration %d", bc.Name, bc.Duration)
		}
		switch bc.Refresh {
		case "":
			bc.Refresh = RefreshReset
		case RefreshReset, RefreshExtend, RefreshPandemic:
		default:
			return nil, fmt.Errorf("buff %q: unknown refresh policy %q", bc.Name, bc.Refresh)
		}
		if _, dup := b.buffs[bc.Ability]; dup {
			return nil, fmt.Errorf("buff %q: ability %d tracked twice", bc.Name, bc.Ability)
		}
		b.buffs[bc.Ability] = &buff{
			cfg:        bc,
			lastChange: b.info.Start,
			atStacks:   make(map[int]int64),
		}
		b.order = append(b.order, bc.Ability)
		ids = append(ids, bc.Ability)
	}

	if len(ids) == 0 {
		ic.Deactivate()
		return b, nil
	}

	isBuff := func(ev event.Event) bool { return ev.IsBuffEvent() }
	filter := event.Filter{Abilities: ids}
	ic.Subscribe(event.And(isBuff, filter.Predicate(), byTarget(b.info.EntityID)), b.onBuff)
	return b, nil
}

func (b *Buffs) onBuff(ev event.Event) error {
	bf := b.buffs[ev.AbilityID]
	t := b.clampTime(ev.Timestamp)
	b.expire(bf, t)

	switch ev.Kind {
	case event.KindApplyBuff, event.KindRefreshBuff:
		if bf.stacks > 0 {
			b.refresh(bf, t)
		} else {
			b.apply(bf, t, ev.Stacks)
		}
	case event.KindApplyBuffStack:
		if bf.stacks == 0 {
			b.apply(bf, t, ev.Stacks)
			break
		}
		next := bf.stacks + 1
		if ev.Stacks > 0 {
			next = ev.Stacks
		}
		b.setStacks(bf, t, next)
		b.refresh(bf, t)
	case event.KindRemoveBuffStack:
		if bf.stacks == 0 {
			b.notActive(bf, ev)
			break
		}
		next := bf.stacks - 1
		if ev.Stacks > 0 {
			next = ev.Stacks
		}
		b.setStacks(bf, t, max(next, 1))
	case event.KindRemoveBuff:
		switch {
		case bf.stacks > 0:
			b.remove(bf, t)
		case !bf.seen:
			// Removed without ever being applied: present since the pull.
			b.apply(bf, b.info.Start, 1)
			b.remove(bf, t)
		default:
			b.notActive(bf, ev)
		}
	}
	bf.seen = true
	return nil
}

func (b *Buffs) notActive(bf *buff, ev event.Event) {
	b.recorder.Record(AnomalyBuffNotActive,
		"%s (%d): %s at %d while not active", bf.cfg.Name, bf.cfg.Ability, ev.Kind, ev.Timestamp)
}

func (b *Buffs) clampTime(t int64) int64 {
	return clamp(t, b.info.Start, b.info.End)
}

// settle accounts the time since the last change at the current stack level.
func settle(bf *buff, t int64) {
	if t > bf.lastChange {
		bf.atStacks[bf.stacks] += t - bf.lastChange
		bf.lastChange = t
	}
}

func (b *Buffs) apply(bf *buff, t int64, stacks int) {
	settle(bf, t)
	bf.stacks = b.capStacks(bf, max(stacks, 1))
	bf.peakStacks = max(bf.peakStacks, bf.stacks)
	bf.openedAt = t
	bf.applications++
	if bf.cfg.Duration > 0 {
		bf.expiresAt = t + bf.cfg.Duration
	}
}

func (b *Buffs) refresh(bf *buff, t int64) {
	bf.refreshes++
	d := bf.cfg.Duration
	if d <= 0 {
		return
	}
	switch bf.cfg.Refresh {
	case RefreshExtend:
		bf.expiresAt += d
	case RefreshPandemic:
		carry := min(max(bf.expiresAt-t, 0), d*pandemicPercent/100)
		bf.expiresAt = t + d + carry
	default:
		bf.expiresAt = t + d
	}
}

func (b *Buffs) setStacks(bf *buff, t int64, stacks int) {
	settle(bf, t)
	bf.stacks = b.capStacks(bf, stacks)
	bf.peakStacks = max(bf.peakStacks, bf.stacks)
}

func (b *Buffs) remove(bf *buff, t int64) {
	settle(bf, t)
	bf.windows = append(bf.windows, Window{Start: bf.openedAt, End: t})
	bf.stacks = 0
	bf.expiresAt = 0
}

// expire removes a buff whose duration ran out at or before t.
func (b *Buffs) expire(bf *buff, t int64) {
	if bf.stacks > 0 && bf.expiresAt > 0 && bf.expiresAt <= t {
		b.remove(bf, b.clampTime(bf.expiresAt))
	}
}

func (b *Buffs) capStacks(bf *buff, stacks int) int {
	if bf.cfg.MaxStacks > 0 {
		return min(stacks, bf.cfg.MaxStacks)
	}
	return stacks
}

// view returns a copy of bf closed at end: pending expiry applied and the
// open window truncated. The tracker itself is not modified.
func (b *Buffs) view(bf *buff, end int64) *buff {
	v := *bf
	v.atStacks = make(map[int]int64, len(bf.atStacks))
	for k, d := range bf.atStacks {
		v.atStacks[k] = d
	}
	v.windows = append([]Window(nil), bf.windows...)

	end = b.clampTime(end)
	b.expire(&v, end)
	if v.stacks > 0 {
		b.remove(&v, end)
	}
	return &v
}

func (b *Buffs) end() int64 {
	return b.clock.Now()
}

// Uptime returns the time buff ability was present with at least one stack.
func (b *Buffs) Uptime(ability int64) int64 {
	return b.UptimeAtLeast(ability, 1)
}

// UptimeAtLeast returns the time buff ability was present with at least
// stacks stacks.
func (b *Buffs) UptimeAtLeast(ability int64, stacks int) int64 {
	bf, ok := b.buffs[ability]
	if !ok {
		return 0
	}
	v := b.view(bf, b.end())
	var total int64
	for level, d := range v.atStacks {
		if level >= max(stacks, 1) {
			total += d
		}
	}
	return total
}

// UptimeRatio returns Uptime divided by the run duration.
func (b *Buffs) UptimeRatio(ability int64) float64 {
	return ratio(b.Uptime(ability), b.end()-b.info.Start)
}

// Stacks returns the stack count of ability as of the last processed event.
func (b *Buffs) Stacks(ability int64) int {
	if bf, ok := b.buffs[ability]; ok {
		return bf.stacks
	}
	return 0
}

// Windows returns the presence windows of ability, the open one truncated
// at run end.
func (b *Buffs) Windows(ability int64) []Window {
	bf, ok := b.buffs[ability]
	if !ok {
		return nil
	}
	return b.view(bf, b.end()).windows
}

// IsActive reports whether ability is present at at, assuming no further
// events after the last processed one.
func (b *Buffs) IsActive(ability, at int64) bool {
	bf, ok := b.buffs[ability]
	if !ok || bf.stacks == 0 {
		return false
	}
	return bf.expiresAt == 0 || at < bf.expiresAt
}

// Active reports whether any tracked buff was seen.
func (b *Buffs) Active() bool {
	for _, bf := range b.buffs {
		if bf.seen {
			return true
		}
	}
	return false
}

// Metrics implements MetricSource.
func (b *Buffs) Metrics() map[string]any {
	out := make(map[string]any, len(b.order)*5)
	for _, id := range b.order {
		bf := b.buffs[id]
		name := bf.cfg.Name
		out[name+".uptime_ms"] = b.Uptime(id)
		out[name+".uptime"] = b.UptimeRatio(id)
		out[name+".applications"] = int64(bf.applications)
		out[name+".refreshes"] = int64(bf.refreshes)
		out[name+".peak_stacks"] = int64(bf.peakStacks)
	}
	return out
}

// Suggestions implements threshold.Suggester over "<buff>.uptime".
func (b *Buffs) Suggestions() []threshold.Suggestion {
	var out []threshold.Suggestion
	for _, id := range b.order {
		out = suggest(b.cfg.Thresholds, b.buffs[id].cfg.Name+".uptime", b.UptimeRatio(id), out)
	}
	return out
}
