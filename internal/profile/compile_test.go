package profile

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/combatlog/internal/analysis"
	"github.com/roach88/combatlog/internal/threshold"
	"github.com/roach88/combatlog/internal/tracker"
)

func TestCompileProfileBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		profile: ret: {
			entity: 7
			haste: {
				base: 0.1
				buffs: [{ability: 2825, haste: 0.3}]
			}
			cooldowns: [
				{name: "avenging_wrath", ability: 31884, duration: 120000},
				{name: "crusader_strike", ability: 35395, duration: 4500, charges: 2, hasted: true},
			]
			pools: [{name: "holy_power", type: 9, capacity: 5, initial: 1}]
			buffs: [{name: "inquisition", ability: 84963, duration: 30000, refresh: "pandemic", max_stacks: 3}]
			resets: [{name: "r", trigger: 20271, target: 31884, reduce: 5000}]
			thresholds: "holy_power.wasted_ratio": {
				comparison: "greaterThan"
				minor: 0.05
				average: 0.1
				major: 0.2
				style: "percentage"
			}
			modules: ["cooldowns"]
		}
	`)
	require.NoError(t, v.Err())

	p, err := CompileProfile(v.LookupPath(cue.ParsePath("profile.ret")))
	require.NoError(t, err)

	assert.Equal(t, "ret", p.Name)
	assert.Equal(t, int64(7), p.Entity)
	assert.Equal(t, &analysis.HasteConfig{Base: 0.1, Buffs: []analysis.HasteBuff{{Ability: 2825, Haste: 0.3}}}, p.Haste)
	assert.Equal(t, []tracker.CooldownConfig{
		{Name: "avenging_wrath", Ability: 31884, Duration: 120000},
		{Name: "crusader_strike", Ability: 35395, Duration: 4500, Charges: 2, Hasted: true},
	}, p.Cooldowns)
	assert.Equal(t, []tracker.PoolConfig{{Name: "holy_power", Type: 9, Capacity: 5, Initial: 1}}, p.Pools)
	assert.Equal(t, []tracker.BuffConfig{{
		Name: "inquisition", Ability: 84963, Duration: 30000, Refresh: tracker.RefreshPandemic, MaxStacks: 3,
	}}, p.Buffs)
	assert.Equal(t, []analysis.ResetRule{{Name: "r", Trigger: 20271, Target: 31884, Reduce: 5000}}, p.Resets)
	assert.Equal(t, threshold.Set{
		"holy_power.wasted_ratio": {
			Comparison: threshold.GreaterThan,
			Minor:      0.05,
			Average:    0.1,
			Major:      0.2,
			Style:      threshold.StylePercentage,
		},
	}, p.Thresholds)
	assert.Equal(t, []string{"cooldowns"}, p.Modules)
	assert.True(t, p.Pos.IsValid())
}

func TestCompileProfileEmptySections(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`profile: bare: {}`)
	require.NoError(t, v.Err())

	p, err := CompileProfile(v.LookupPath(cue.ParsePath("profile.bare")))
	require.NoError(t, err)
	assert.Equal(t, "bare", p.Name)
	assert.Nil(t, p.Haste)
	assert.Empty(t, p.Cooldowns)
	assert.Empty(t, p.Thresholds)
}

func TestCompileProfileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "unknown top-level field",
			src:   `profile: p: { cooldown: [] }`,
			field: "cooldown",
		},
		{
			name:  "missing cooldown duration",
			src:   `profile: p: { cooldowns: [{name: "a", ability: 1}] }`,
			field: "cooldowns[0].duration",
		},
		{
			name:  "unknown buff field",
			src:   `profile: p: { buffs: [{name: "a", ability: 1, stacks: 2}] }`,
			field: "buffs[0].stacks",
		},
		{
			name:  "cooldowns not a list",
			src:   `profile: p: { cooldowns: {name: "a"} }`,
			field: "cooldowns",
		},
		{
			name:  "wrong type",
			src:   `profile: p: { pools: [{name: "a", type: 1, capacity: "five"}] }`,
			field: "pools[0]",
		},
		{
			name:  "missing threshold bound",
			src:   `profile: p: { thresholds: "a.b": {comparison: "lessThan", minor: 1, average: 1} }`,
			field: "thresholds.a.b.major",
		},
		{
			name:  "haste buff without haste",
			src:   `profile: p: { haste: buffs: [{ability: 2825}] }`,
			field: "haste.buffs[0].haste",
		},
		{
			name:  "fractional entity",
			src:   `profile: p: { entity: 1.5 }`,
			field: "entity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "p.cue")
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "expected *CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.True(t, ce.Pos.IsValid(), "position should be reported")
		})
	}
}

func TestCompileStringMultipleProfiles(t *testing.T) {
	profiles, err := CompileString(`
		profile: a: { pools: [{name: "mana", type: 0, capacity: 100}] }
		profile: b: { buffs: [{name: "x", ability: 1}] }
	`, "multi.cue")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].Name)
	assert.Equal(t, "b", profiles[1].Name)
}

func TestCompileStringSyntaxError(t *testing.T) {
	_, err := CompileString(`profile: a: {`, "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "cooldowns[0].duration", Message: "duration is required"}
	assert.Equal(t, "cooldowns[0].duration: duration is required", err.Error())
}
