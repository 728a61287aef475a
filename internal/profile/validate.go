package profile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyProfile = "E100" // profile tracks nothing

	// Item errors (E101-E109)
	ErrNameRequired     = "E101" // item name is required
	ErrDuplicateName    = "E102" // duplicate item name within a section
	ErrDuplicateAbility = "E103" // ability tracked twice within a section
	ErrInvalidDuration  = "E104" // cooldown/buff duration out of range
	ErrInvalidCharges   = "E105" // negative charges or max stacks
	ErrInvalidCapacity  = "E106" // pool capacity or initial out of range
	ErrInvalidRefresh   = "E107" // unknown refresh policy
	ErrInvalidHaste     = "E108" // haste at or below -100%

	// Threshold errors (E110-E119)
	ErrInvalidComparison = "E110" // unknown comparison
	ErrInvalidStyle      = "E111" // unknown style
	ErrBoundsOrder       = "E112" // bounds not ordered in the comparison direction

	// Wiring errors (E120-E129)
	ErrUnknownModule    = "E120" // requested module not configured by the profile
	ErrInvalidResetRule = "E121" // reset rule without effect or untracked target
)

// ValidationError represents a profile validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// InvalidError is returned by Build for a profile that fails validation.
type InvalidError struct {
	Profile string
	Errors  []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("profile %s is invalid: %s", e.Profile, strings.Join(msgs, "; "))
}

// Validate checks a compiled profile.
// Returns all errors found (does not fail-fast).
func Validate(p *Profile) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		ve := ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code}
		if p.Pos.IsValid() {
			ve.Line = p.Pos.Line()
		}
		errs = append(errs, ve)
	}

	// E100: something to track
	if p.Haste == nil && len(p.Cooldowns) == 0 && len(p.Pools) == 0 && len(p.Buffs) == 0 {
		add(ErrEmptyProfile, "profile", "profile %s configures no haste, cooldowns, pools or buffs", p.Name)
	}

	if p.Haste != nil {
		if p.Haste.Base <= -1 {
			add(ErrInvalidHaste, "haste.base", "base haste %g must be above -1", p.Haste.Base)
		}
		for i, b := range p.Haste.Buffs {
			if b.Haste <= -1 {
				add(ErrInvalidHaste, fmt.Sprintf("haste.buffs[%d].haste", i), "haste %g must be above -1", b.Haste)
			}
		}
	}

	tracked := make(map[int64]bool, len(p.Cooldowns))
	names := newUniq()
	abilities := newUniq()
	for i, cd := range p.Cooldowns {
		field := fmt.Sprintf("cooldowns[%d]", i)
		tracked[cd.Ability] = true
		checkName(add, names, field, cd.Name)
		if abilities.seen(fmt.Sprint(cd.Ability)) {
			add(ErrDuplicateAbility, field+".ability", "ability %d already has a cooldown", cd.Ability)
		}
		if cd.Duration <= 0 {
			add(ErrInvalidDuration, field+".duration", "duration must be positive, got %d", cd.Duration)
		}
		if cd.Charges < 0 {
			add(ErrInvalidCharges, field+".charges", "charges must not be negative, got %d", cd.Charges)
		}
	}

	names = newUniq()
	types := newUniq()
	for i, pool := range p.Pools {
		field := fmt.Sprintf("pools[%d]", i)
		checkName(add, names, field, pool.Name)
		if types.seen(fmt.Sprint(pool.Type)) {
			add(ErrDuplicateAbility, field+".type", "resource type %d already has a pool", pool.Type)
		}
		if pool.Capacity <= 0 {
			add(ErrInvalidCapacity, field+".capacity", "capacity must be positive, got %d", pool.Capacity)
		} else if pool.Initial < 0 || pool.Initial > pool.Capacity {
			add(ErrInvalidCapacity, field+".initial", "initial %d outside [0, %d]", pool.Initial, pool.Capacity)
		}
	}

	names = newUniq()
	abilities = newUniq()
	for i, b := range p.Buffs {
		field := fmt.Sprintf("buffs[%d]", i)
		checkName(add, names, field, b.Name)
		if abilities.seen(fmt.Sprint(b.Ability)) {
			add(ErrDuplicateAbility, field+".ability", "ability %d already tracked as a buff", b.Ability)
		}
		if b.Duration < 0 {
			add(ErrInvalidDuration, field+".duration", "duration must not be negative, got %d", b.Duration)
		}
		if b.MaxStacks < 0 {
			add(ErrInvalidCharges, field+".max_stacks", "max_stacks must not be negative, got %d", b.MaxStacks)
		}
		switch b.Refresh {
		case "", tracker.RefreshReset, tracker.RefreshExtend, tracker.RefreshPandemic:
		default:
			add(ErrInvalidRefresh, field+".refresh", "unknown refresh policy %q", b.Refresh)
		}
	}

	names = newUniq()
	for i, rule := range p.Resets {
		field := fmt.Sprintf("resets[%d]", i)
		checkName(add, names, field, rule.Name)
		if !tracked[rule.Target] {
			add(ErrInvalidResetRule, field+".target", "ability %d has no tracked cooldown", rule.Target)
		}
		if !rule.Reset && rule.Reduce <= 0 {
			add(ErrInvalidResetRule, field, "rule needs reduce > 0 or reset")
		}
	}

	metrics := make([]string, 0, len(p.Thresholds))
	for metric := range p.Thresholds {
		metrics = append(metrics, metric)
	}
	slices.Sort(metrics)
	for _, metric := range metrics {
		validateBounds(add, "thresholds."+metric, p.Thresholds[metric])
	}

	available := p.Available()
	for i, name := range p.Modules {
		if !slices.Contains(available, name) {
			add(ErrUnknownModule, fmt.Sprintf("modules[%d]", i),
				"module %q is not configured (available: %s)", name, strings.Join(available, ", "))
		}
	}

	return errs
}

type addFunc func(code, field, format string, args ...any)

func checkName(add addFunc, names *uniq, field, name string) {
	if strings.TrimSpace(name) == "" {
		add(ErrNameRequired, field+".name", "name is required and must be non-empty")
		return
	}
	if names.seen(name) {
		add(ErrDuplicateName, field+".name", "duplicate name %q", name)
	}
}

func validateBounds(add addFunc, field string, b threshold.Bounds) {
	switch b.Style {
	case "", threshold.StylePercentage, threshold.StyleNumber, threshold.StyleBoolean:
	default:
		add(ErrInvalidStyle, field+".style", "unknown style %q", b.Style)
	}

	switch b.Comparison {
	case threshold.GreaterThan:
		if b.Minor > b.Average || b.Average > b.Major {
			add(ErrBoundsOrder, field, "greaterThan bounds must satisfy minor <= average <= major")
		}
	case threshold.LessThan:
		if b.Minor < b.Average || b.Average < b.Major {
			add(ErrBoundsOrder, field, "lessThan bounds must satisfy minor >= average >= major")
		}
	default:
		add(ErrInvalidComparison, field+".comparison", "unknown comparison %q", b.Comparison)
	}
}

type uniq struct{ m map[string]bool }

func newUniq() *uniq { return &uniq{m: make(map[string]bool)} }

// seen records s and reports whether it was already present.
func (u *uniq) seen(s string) bool {
	if u.m[s] {
		return true
	}
	u.m[s] = true
	return false
}
