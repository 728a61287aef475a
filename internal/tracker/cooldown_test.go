package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/combatlog/internal/engine"
	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/threshold"
)

const (
	fireball int64 = 133
	blink    int64 = 1953
)

func cooldownsOf(abilities ...CooldownConfig) engine.Spec {
	return CooldownsSpec(CooldownsConfig{Abilities: abilities})
}

// Single charge, duration 10, used at t=0 and t=5.
func TestCooldowns_SingleChargeReuseTooEarly(t *testing.T) {
	res := runModules(t, engine.RunInfo{EntityID: player},
		[]event.Event{cast(0, fireball), cast(5, fireball)},
		cooldownsOf(CooldownConfig{Name: "fireball", Ability: fireball, Duration: 10}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	st, ok := cd.State(fireball, 5)
	require.True(t, ok)
	assert.Equal(t, PhaseOnCooldown, st.Phase)
	assert.Equal(t, int64(10), st.EndsAt)
	assert.Equal(t, 0, st.Charges)
	assert.False(t, cd.IsAvailable(fireball, 9))
	assert.Equal(t, int64(1), cd.Remaining(fireball, 9))

	st, _ = cd.State(fireball, 10)
	assert.Equal(t, PhaseAvailable, st.Phase)
	assert.True(t, cd.IsAvailable(fireball, 10))
	assert.Equal(t, int64(0), cd.Remaining(fireball, 10))

	// The second cast is a data inconsistency: recorded, clamped
	anomalies := res.AnomaliesFor(CooldownsModule)
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyChargeUnderflow, anomalies[0].Code)
	assert.Equal(t, int64(5), anomalies[0].Timestamp)
	assert.Equal(t, []int64{0, 5}, cd.Casts(fireball))
}

// usageRecorder depends on cooldowns and records the recharge remaining right
// after each cast was processed.
type usageRecorder struct {
	remaining []int64
}

func usageRecorderSpec(ability int64) engine.Spec {
	return engine.Spec{
		Name:         "usage",
		Dependencies: []string{CooldownsModule},
		Factory: func(ic *engine.InitContext) (engine.Module, error) {
			cd, err := engine.Dependency[*Cooldowns](ic, CooldownsModule)
			if err != nil {
				return nil, err
			}
			p := &usageRecorder{}
			filter := event.Filter{Kinds: []event.Kind{event.KindCast}, Abilities: []int64{ability}}
			ic.Subscribe(filter.Predicate(), func(ev event.Event) error {
				p.remaining = append(p.remaining, cd.Remaining(ability, ev.Timestamp))
				return nil
			})
			return p, nil
		},
	}
}

// Uses separated by more than the duration always find the ability ready,
// so each one starts a full recharge.
func TestCooldowns_SpacedUsesAlwaysAvailable(t *testing.T) {
	for _, gap := range []int64{11, 15, 100} {
		var events []event.Event
		for i := int64(0); i < 8; i++ {
			events = append(events, cast(i*gap, fireball))
		}

		res := runModules(t, engine.RunInfo{},
			events,
			cooldownsOf(CooldownConfig{Name: "fireball", Ability: fireball, Duration: 10}),
			usageRecorderSpec(fireball),
		)

		assert.Empty(t, res.Anomalies, "gap %d", gap)
		usage := mustInstance[*usageRecorder](t, res, "usage")
		for i, rem := range usage.remaining {
			assert.Equal(t, int64(10), rem, "gap %d cast %d", gap, i)
		}
	}
}

func TestCooldowns_MultiCharge(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{cast(0, blink), cast(2, blink), cast(3, blink), cast(12, blink)},
		cooldownsOf(CooldownConfig{Name: "blink", Ability: blink, Duration: 10, Charges: 2}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	// t=3 cast underflows: charges stay at zero
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, int64(3), res.Anomalies[0].Timestamp)

	// Recharge started at 0 ends at 10, the next one at 20; the t=12 cast
	// spends the charge restored at 10 without moving endsAt.
	st, _ := cd.State(blink, 12)
	assert.Equal(t, CooldownState{Ability: blink, Phase: PhaseOnCooldown, Charges: 0, MaxCharges: 2, EndsAt: 20}, st)

	assert.Equal(t, 1, cd.ChargesAvailable(blink, 20))
	st, _ = cd.State(blink, 20)
	assert.Equal(t, int64(30), st.EndsAt)
	assert.Equal(t, 2, cd.ChargesAvailable(blink, 30))

	st, _ = cd.State(blink, 1000)
	assert.Equal(t, PhaseAvailable, st.Phase)
}

func TestCooldowns_ChargesNeverNegative(t *testing.T) {
	var events []event.Event
	for ts := int64(0); ts < 20; ts++ {
		events = append(events, cast(ts, blink))
	}
	res := runModules(t, engine.RunInfo{},
		events,
		cooldownsOf(CooldownConfig{Name: "blink", Ability: blink, Duration: 50, Charges: 3}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	for ts := int64(0); ts < 200; ts += 7 {
		c := cd.ChargesAvailable(blink, ts)
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 3)
	}
	assert.Len(t, res.Anomalies, 17)
}

func TestCooldowns_Haste(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{cast(0, fireball), cast(0, blink)},
		hasteSpec(0.25),
		CooldownsSpec(CooldownsConfig{
			HasteModule: "haste",
			Abilities: []CooldownConfig{
				{Name: "fireball", Ability: fireball, Duration: 10000, Hasted: true},
				{Name: "blink", Ability: blink, Duration: 10000},
			},
		}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	assert.False(t, cd.IsAvailable(fireball, 7999))
	assert.True(t, cd.IsAvailable(fireball, 8000))
	assert.False(t, cd.IsAvailable(blink, 8000), "unhasted cooldowns ignore haste")
	assert.True(t, cd.IsAvailable(blink, 10000))
}

func TestCooldowns_MissingHasteDependency(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		nil,
		engine.Spec{Name: "haste", Factory: func(ic *engine.InitContext) (engine.Module, error) {
			return "not a haste source", nil
		}},
		CooldownsSpec(CooldownsConfig{
			HasteModule: "haste",
			Abilities:   []CooldownConfig{{Name: "fireball", Ability: fireball, Duration: 10}},
		}),
	)
	m, _ := res.Module(CooldownsModule)
	assert.Equal(t, engine.StatusUnavailable, m.Status)
}

func TestCooldowns_ReduceResetExtend(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{cast(0, fireball)},
		cooldownsOf(CooldownConfig{Name: "fireball", Ability: fireball, Duration: 10000}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	require.NoError(t, cd.Reduce(fireball, 3000, 1000))
	st, _ := cd.State(fireball, 1000)
	assert.Equal(t, int64(7000), st.EndsAt)

	require.NoError(t, cd.Extend(fireball, 2000, 1000))
	st, _ = cd.State(fireball, 1000)
	assert.Equal(t, int64(9000), st.EndsAt)

	// A reduction never ends the recharge in the past
	require.NoError(t, cd.Reduce(fireball, 100000, 1500))
	assert.True(t, cd.IsAvailable(fireball, 1500))

	err := cd.Reset(999, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownAbility)
}

func TestCooldowns_Reset(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{cast(0, blink), cast(1, blink)},
		cooldownsOf(CooldownConfig{Name: "blink", Ability: blink, Duration: 10000, Charges: 2}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	require.NoError(t, cd.Reset(blink, 2000))
	st, _ := cd.State(blink, 2000)
	assert.Equal(t, 1, st.Charges)
	assert.Equal(t, PhaseOnCooldown, st.Phase)
	assert.Equal(t, int64(12000), st.EndsAt)

	require.NoError(t, cd.Reset(blink, 2000))
	assert.Equal(t, 2, cd.ChargesAvailable(blink, 2000))
}

func TestCooldowns_CappedTimeAndMaxCasts(t *testing.T) {
	res := runModules(t, engine.RunInfo{Start: 0, End: 100000},
		[]event.Event{cast(5000, fireball), cast(20000, fireball)},
		cooldownsOf(CooldownConfig{Name: "fireball", Ability: fireball, Duration: 10000}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	// Ready 0-5000, 15000-20000 and 30000-100000
	assert.Equal(t, int64(80000), cd.CappedTime(fireball, 100000))
	assert.Equal(t, 11, cd.MaxPossibleCasts(fireball))

	m := cd.Metrics()
	assert.Equal(t, int64(2), m["fireball.casts"])
	assert.Equal(t, int64(11), m["fireball.max_casts"])
	assert.Equal(t, int64(80000), m["fireball.capped_ms"])
}

func TestCooldowns_EntityFilterAndActivity(t *testing.T) {
	other := cast(0, fireball)
	other.SourceID = 99

	res := runModules(t, engine.RunInfo{EntityID: player},
		[]event.Event{other},
		cooldownsOf(CooldownConfig{Name: "fireball", Ability: fireball, Duration: 10}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)
	assert.Empty(t, cd.Casts(fireball))
	assert.False(t, cd.Active())

	m, _ := res.Module(CooldownsModule)
	assert.Equal(t, engine.StatusInactive, m.Status)
}

func TestCooldowns_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		abilities []CooldownConfig
	}{
		{"zero duration", []CooldownConfig{{Name: "x", Ability: 1}}},
		{"duplicate ability", []CooldownConfig{
			{Name: "x", Ability: 1, Duration: 10},
			{Name: "y", Ability: 1, Duration: 10},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runModules(t, engine.RunInfo{}, nil, cooldownsOf(tt.abilities...))
			m, _ := res.Module(CooldownsModule)
			assert.Equal(t, engine.StatusUnavailable, m.Status)
		})
	}
}

func TestCooldowns_Suggestions(t *testing.T) {
	res := runModules(t, engine.RunInfo{Start: 0, End: 100000},
		[]event.Event{cast(5000, fireball)},
		CooldownsSpec(CooldownsConfig{
			Abilities: []CooldownConfig{{Name: "fireball", Ability: fireball, Duration: 10000}},
			Thresholds: threshold.Set{
				"fireball.capped_ratio": {
					Comparison: threshold.GreaterThan,
					Minor:      0.1,
					Average:    0.3,
					Major:      0.5,
					Style:      threshold.StylePercentage,
				},
			},
		}),
	)
	cd := mustInstance[*Cooldowns](t, res, CooldownsModule)

	// Ready 0-5000 and 15000-100000: 90% of the fight
	sugs := cd.Suggestions()
	require.Len(t, sugs, 1)
	assert.Equal(t, "fireball.capped_ratio", sugs[0].Metric)
	assert.Equal(t, threshold.SeverityMajor, sugs[0].Severity)
	assert.InDelta(t, 0.9, sugs[0].Policy.Actual, 1e-9)
}
