package analysis

import (
	"fmt"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/tracker"
)

// ResetRule states that casting Trigger shortens Target's cooldown: by
// Reduce ms, or completely when Reset is set.
type ResetRule struct {
	Name    string `json:"name" yaml:"name"`
	Trigger int64  `json:"trigger" yaml:"trigger"`
	Target  int64  `json:"target" yaml:"target"`
	Reduce  int64  `json:"reduce,omitempty" yaml:"reduce,omitempty"`
	Reset   bool   `json:"reset,omitempty" yaml:"reset,omitempty"`
}

// ResetsConfig configures the resets module.
type ResetsConfig struct {
	Rules []ResetRule
}

// Resets applies cooldown reduction rules. Because it depends on the
// cooldowns tracker, the tracker has already processed a trigger cast when
// the rule fires for the same event.
type Resets struct {
	cooldowns *tracker.Cooldowns
	rules     []ResetRule
	applied   map[string]int64
}

// ResetsSpec returns the engine spec for the resets module.
func ResetsSpec(cfg ResetsConfig) engine.Spec {
	return engine.Spec{
		Name:         ResetsModule,
		Dependencies: []string{tracker.CooldownsModule},
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewResets(ic, cfg)
		},
	}
}

// NewResets validates rules against the tracked cooldowns and subscribes
// to trigger casts.
func NewResets(ic *engine.InitContext, cfg ResetsConfig) (*Resets, error) {
	cd, err := engine.Dependency[*tracker.Cooldowns](ic, tracker.CooldownsModule)
	if err != nil {
		return nil, err
	}

	r := &Resets{
		cooldowns: cd,
		rules:     cfg.Rules,
		applied:   make(map[string]int64, len(cfg.Rules)),
	}

	byTrigger := make(map[int64][]ResetRule)
	triggers := make([]int64, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if !cd.IsTracked(rule.Target) {
			return nil, fmt.Errorf("reset rule %q: target ability %d has no tracked cooldown", rule.Name, rule.Target)
		}
		if !rule.Reset && rule.Reduce <= 0 {
			return nil, fmt.Errorf("reset rule %q: needs reduce > 0 or reset", rule.Name)
		}
		if _, seen := byTrigger[rule.Trigger]; !seen {
			triggers = append(triggers, rule.Trigger)
		}
		byTrigger[rule.Trigger] = append(byTrigger[rule.Trigger], rule)
		r.applied[rule.Name] = 0
	}

	if len(triggers) == 0 {
		ic.Deactivate()
		return r, nil
	}

	filter := event.Filter{
		Kinds:     []event.Kind{event.KindCast},
		Abilities: triggers,
		SourceID:  ic.Run().EntityID,
	}
	ic.Subscribe(filter.Predicate(), func(ev event.Event) error {
		for _, rule := range byTrigger[ev.AbilityID] {
			var err error
			if rule.Reset {
				err = cd.Reset(rule.Target, ev.Timestamp)
			} else {
				err = cd.Reduce(rule.Target, rule.Reduce, ev.Timestamp)
			}
			if err != nil {
				return fmt.Errorf("apply rule %s: %w", rule.Name, err)
			}
			r.applied[rule.Name]++
		}
		return nil
	})
	return r, nil
}

// Applied returns how often the named rule fired.
func (r *Resets) Applied(rule string) int64 {
	return r.applied[rule]
}

// Active reports whether any rule fired.
func (r *Resets) Active() bool {
	for _, n := range r.applied {
		if n > 0 {
			return true
		}
	}
	return false
}

// Metrics implements tracker.MetricSource.
func (r *Resets) Metrics() map[string]any {
	out := make(map[string]any, len(r.rules))
	for _, rule := range r.rules {
		out[rule.Name+".applied"] = r.applied[rule.Name]
	}
	return out
}
