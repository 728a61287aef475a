// Package profile loads analysis profiles and turns them into module
// registries.
//
// A profile is a CUE struct under profile.<name>:
//
//	profile: retribution: {
//		entity: 1
//		haste: {base: 0.1, buffs: [{ability: 2825, haste: 0.3}]}
//		cooldowns: [{name: "avenging_wrath", ability: 31884, duration: 120000}]
//		pools: [{name: "holy_power", type: 9, capacity: 5}]
//		buffs: [{name: "inquisition", ability: 84963, duration: 30000, refresh: "pandemic"}]
//		resets: [{name: "art_of_war", trigger: 59578, target: 879, reset: true}]
//		thresholds: "holy_power.wasted_ratio": {comparison: "greaterThan", minor: 0.05, average: 0.1, major: 0.2, style: "percentage"}
//		modules: ["cooldowns", "resources"]
//	}
//
// Every section is optional. Build registers a module per configured
// section, plus casts, and requests either the listed modules or all of them.
package profile

import (
	"cuelang.org/go/cue/token"

	"github.com/roach88/combatlog/internal/analysis"
	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

// Profile is a compiled analysis profile.
type Profile struct {
	Name       string                   `json:"name"`
	Entity     int64                    `json:"entity,omitempty"`
	Haste      *analysis.HasteConfig    `json:"haste,omitempty"`
	Cooldowns  []tracker.CooldownConfig `json:"cooldowns,omitempty"`
	Pools      []tracker.PoolConfig     `json:"pools,omitempty"`
	Buffs      []tracker.BuffConfig     `json:"buffs,omitempty"`
	Resets     []analysis.ResetRule     `json:"resets,omitempty"`
	Thresholds threshold.Set            `json:"thresholds,omitempty"`
	Modules    []string                 `json:"modules,omitempty"`

	Pos token.Pos `json:"-"`
}

// Specs returns the module specs the profile configures, in registration
// order.
func (p *Profile) Specs() []engine.Spec {
	var specs []engine.Spec
	hasteModule := ""
	if p.Haste != nil {
		specs = append(specs, analysis.HasteSpec(*p.Haste))
		hasteModule = analysis.HasteModule
	}
	if len(p.Cooldowns) > 0 {
		specs = append(specs, tracker.CooldownsSpec(tracker.CooldownsConfig{
			Abilities:   p.Cooldowns,
			HasteModule: hasteModule,
			Thresholds:  p.Thresholds,
		}))
	}
	if len(p.Pools) > 0 {
		specs = append(specs, tracker.ResourcesSpec(tracker.ResourcesConfig{
			Pools:      p.Pools,
			Thresholds: p.Thresholds,
		}))
	}
	if len(p.Buffs) > 0 {
		specs = append(specs, tracker.BuffsSpec(tracker.BuffsConfig{
			Buffs:      p.Buffs,
			Thresholds: p.Thresholds,
		}))
	}
	specs = append(specs, analysis.CastsSpec())
	if len(p.Cooldowns) > 0 {
		specs = append(specs, analysis.EfficiencySpec(analysis.EfficiencyConfig{Thresholds: p.Thresholds}))
	}
	if len(p.Resets) > 0 {
		specs = append(specs, analysis.ResetsSpec(analysis.ResetsConfig{Rules: p.Resets}))
	}
	return specs
}

// Available returns the names of the modules the profile configures.
func (p *Profile) Available() []string {
	specs := p.Specs()
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// Build validates p and returns its registry and the requested module
// names.
func Build(p *Profile) (*engine.Registry, []string, error) {
	if errs := Validate(p); len(errs) > 0 {
		return nil, nil, &InvalidError{Profile: p.Name, Errors: errs}
	}

	reg := engine.NewRegistry()
	for _, spec := range p.Specs() {
		if err := reg.Register(spec); err != nil {
			return nil, nil, err
		}
	}

	requested := p.Modules
	if len(requested) == 0 {
		requested = reg.Names()
	}
	return reg, requested, nil
}

// NewEngine builds p and constructs an engine over it.
func NewEngine(p *Profile, opts ...engine.EngineOption) (*engine.Engine, error) {
	reg, requested, err := Build(p)
	if err != nil {
		return nil, err
	}
	return engine.New(reg, requested, opts...)
}
