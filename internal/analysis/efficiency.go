package analysis

import (
	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

// EfficiencyConfig configures the efficiency module.
type EfficiencyConfig struct {
	Thresholds threshold.Set
}

// CastEfficiency is the usage of one cooldown over the run.
type CastEfficiency struct {
	Name     string  `json:"name"`
	Ability  int64   `json:"ability"`
	Casts    int64   `json:"casts"`
	MaxCasts int64   `json:"max_casts"`
	Ratio    float64 `json:"ratio"`
}

// Efficiency compares actual casts of every tracked cooldown with the
// maximum the cooldown allowed. It has no subscriptions of its own and
// derives everything from its dependencies after replay.
type Efficiency struct {
	cfg       EfficiencyConfig
	cooldowns *tracker.Cooldowns
	casts     *Casts
}

// EfficiencySpec returns the engine spec for the efficiency module.
func EfficiencySpec(cfg EfficiencyConfig) engine.Spec {
	return engine.Spec{
		Name:         EfficiencyModule,
		Dependencies: []string{tracker.CooldownsModule, CastsModule},
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return NewEfficiency(ic, cfg)
		},
	}
}

// NewEfficiency constructs the module from its dependencies.
func NewEfficiency(ic *engine.InitContext, cfg EfficiencyConfig) (*Efficiency, error) {
	cd, err := engine.Dependency[*tracker.Cooldowns](ic, tracker.CooldownsModule)
	if err != nil {
		return nil, err
	}
	casts, err := engine.Dependency[*Casts](ic, CastsModule)
	if err != nil {
		return nil, err
	}
	return &Efficiency{cfg: cfg, cooldowns: cd, casts: casts}, nil
}

// Cooldowns returns the efficiency of every tracked cooldown in
// configuration order.
func (e *Efficiency) Cooldowns() []CastEfficiency {
	cfgs := e.cooldowns.Config()
	out := make([]CastEfficiency, 0, len(cfgs))
	for _, c := range cfgs {
		n := e.casts.Count(c.Ability)
		maxCasts := int64(e.cooldowns.MaxPossibleCasts(c.Ability))
		r := 0.0
		if maxCasts > 0 {
			r = min(float64(n)/float64(maxCasts), 1)
		}
		out = append(out, CastEfficiency{
			Name:     c.Name,
			Ability:  c.Ability,
			Casts:    n,
			MaxCasts: maxCasts,
			Ratio:    r,
		})
	}
	return out
}

// Active follows the cooldowns tracker.
func (e *Efficiency) Active() bool {
	return e.cooldowns.Active()
}

// Metrics implements tracker.MetricSource.
func (e *Efficiency) Metrics() map[string]any {
	out := make(map[string]any)
	for _, c := range e.Cooldowns() {
		out[c.Name+".efficiency"] = c.Ratio
	}
	return out
}

// Suggestions implements threshold.Suggester over "<cooldown>.efficiency".
func (e *Efficiency) Suggestions() []threshold.Suggestion {
	var out []threshold.Suggestion
	for _, c := range e.Cooldowns() {
		if s, ok := e.cfg.Thresholds.Suggest(c.Name+".efficiency", c.Ratio); ok {
			out = append(out, s)
		}
	}
	return out
}
