package tracker

import (
	"fmt"
	"sort"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

// PoolConfig declares one tracked resource pool.
type PoolConfig struct {
	Name     string `json:"name" yaml:"name"`
	Type     int    `json:"type" yaml:"type"`
	Capacity int64  `json:"capacity" yaml:"capacity"`
	Initial  int64  `json:"initial" yaml:"initial"`
}

// ResourcesConfig configures the resources module.
type ResourcesConfig struct {
	Pools      []PoolConfig
	Thresholds threshold.Set
}

// Breakdown holds per-ability resource counters.
type Breakdown struct {
	Generated int64 `json:"generated"`
	Wasted    int64 `json:"wasted"`
	Spent     int64 `json:"spent"`
}

// Pool is the state of one resource pool.
//
// INVARIANTS:
//   - 0 <= Current <= Capacity
//   - Generated, Spent and Wasted never decrease
type Pool struct {
	Name      string
	Type      int
	Capacity  int64
	Current   int64
	Generated int64
	Spent     int64
	Wasted    int64

	abilities map[int64]*Breakdown
}

// WastedRatio is Wasted / Generated, or 0 when nothing was generated.
func (p *Pool) WastedRatio() float64 {
	return ratio(p.Wasted, p.Generated)
}

// Ability returns the counters attributed to ability.
func (p *Pool) Ability(ability int64) Breakdown {
	if b, ok := p.abilities[ability]; ok {
		return *b
	}
	return Breakdown{}
}

// Abilities returns the abilities with attributed counters, ascending.
func (p *Pool) Abilities() []int64 {
	out := make([]int64, 0, len(p.abilities))
	for id := range p.abilities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Pool) breakdown(ability int64) *Breakdown {
	b, ok := p.abilities[ability]
	if !ok {
		b = &Breakdown{}
		p.abilities[ability] = b
	}
	return b
}

// Resources tracks generation, spending and waste per resource pool.
type Resources struct {
	cfg      ResourcesConfig
	recorder *engine.Recorder
	pools    map[int]*Pool
	order    []int
	events   int
}

// ResourcesSpec returns the engine spec for the resources module.
func ResourcesSpec(cfg ResourcesConfig) engine.Spec {
	return engine.Spec{
		Name: ResourcesModule,
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewResources(ic, cfg)
		},
	}
}

// NewResources constructs the module. Gains are resourcechange events
// landing on the entity; costs are casts by the entity carrying a
// resource cost.
func NewResources(ic *engine.InitContext, cfg ResourcesConfig) (*Resources, error) {
	r := &Resources{
		cfg:      cfg,
		recorder: ic.Recorder(),
		pools:    make(map[int]*Pool, len(cfg.Pools)),
	}

	for _, pc := range cfg.Pools {
		if pc.Capacity <= 0 {
			return nil, fmt.Errorf("pool %q: capacity must be positive, got %d", pc.Name, pc.Capacity)
		}
		if _, dup := r.pools[pc.Type]; dup {
			return nil, fmt.Errorf("pool %q: resource type %d tracked twice", pc.Name, pc.Type)
		}
		r.pools[pc.Type] = &Pool{
			Name:      pc.Name,
			Type:      pc.Type,
			Capacity:  pc.Capacity,
			Current:   clamp(pc.Initial, 0, pc.Capacity),
			abilities: make(map[int64]*Breakdown),
		}
		r.order = append(r.order, pc.Type)
	}

	if len(r.order) == 0 {
		ic.Deactivate()
		return r, nil
	}

	entity := ic.Run().EntityID
	tracked := func(ev event.Event) bool {
		_, ok := r.pools[ev.ResourceType]
		return ok
	}
	gains := event.Filter{Kinds: []event.Kind{event.KindResourceChange}}
	costs := func(ev event.Event) bool {
		return ev.Kind == event.KindCast && ev.ResourceCost > 0
	}

	ic.Subscribe(event.And(gains.Predicate(), byTarget(entity), tracked), r.onChange)
	ic.Subscribe(event.And(costs, bySource(entity), tracked), r.onCost)
	return r, nil
}

func (r *Resources) onChange(ev event.Event) error {
	p := r.pools[ev.ResourceType]
	r.events++
	if ev.ResourceMax > 0 {
		r.setCapacity(p, ev.ResourceMax)
	}
	switch {
	case ev.ResourceChange > 0:
		r.gain(p, ev.AbilityID, ev.ResourceChange)
	case ev.ResourceChange < 0:
		r.spend(p, ev, -ev.ResourceChange)
	}
	return nil
}

func (r *Resources) onCost(ev event.Event) error {
	r.events++
	r.spend(r.pools[ev.ResourceType], ev, ev.ResourceCost)
	return nil
}

// gain adds amount to the pool. Generated always grows by amount; the part
// that does not fit under capacity is wasted.
func (r *Resources) gain(p *Pool, ability, amount int64) {
	waste := max(0, p.Current+amount-p.Capacity)
	p.Generated += amount
	p.Wasted += waste
	p.Current = min(p.Current+amount, p.Capacity)

	b := p.breakdown(ability)
	b.Generated += amount
	b.Wasted += waste
}

func (r *Resources) spend(p *Pool, ev event.Event, amount int64) {
	p.Spent += amount
	p.breakdown(ev.AbilityID).Spent += amount
	if amount > p.Current {
		r.recorder.Record(AnomalyResourceUnderflow,
			"%s: spend of %d by ability %d exceeds current %d",
			p.Name, amount, ev.AbilityID, p.Current)
		p.Current = 0
		return
	}
	p.Current -= amount
}

func (r *Resources) setCapacity(p *Pool, capacity int64) {
	p.Capacity = capacity
	p.Current = min(p.Current, capacity)
}

// Pool returns the state of the pool with the given resource type.
func (r *Resources) Pool(resourceType int) (Pool, bool) {
	p, ok := r.pools[resourceType]
	if !ok {
		return Pool{}, false
	}
	return *p, true
}

// Pools returns every pool in configuration order.
func (r *Resources) Pools() []Pool {
	out := make([]Pool, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, *r.pools[t])
	}
	return out
}

// Active reports whether any tracked resource event was seen.
func (r *Resources) Active() bool {
	return r.events > 0
}

// Metrics implements MetricSource.
func (r *Resources) Metrics() map[string]any {
	out := make(map[string]any, len(r.order)*6)
	for _, t := range r.order {
		p := r.pools[t]
		out[p.Name+".generated"] = p.Generated
		out[p.Name+".spent"] = p.Spent
		out[p.Name+".wasted"] = p.Wasted
		out[p.Name+".current"] = p.Current
		out[p.Name+".capacity"] = p.Capacity
		out[p.Name+".wasted_ratio"] = p.WastedRatio()
	}
	return out
}

// Suggestions implements threshold.Suggester over "<pool>.wasted_ratio".
func (r *Resources) Suggestions() []threshold.Suggestion {
	var out []threshold.Suggestion
	for _, t := range r.order {
		p := r.pools[t]
		out = suggest(r.cfg.Thresholds, p.Name+".wasted_ratio", p.WastedRatio(), out)
	}
	return out
}
