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
	mana        = 0
	holyPower   = 9
	arcaneShot  = int64(185358)
	manaTideTot = int64(16191)
)

func gain(ts int64, resourceType int, amount, ability int64) event.Event {
	return event.Event{
		Timestamp:      ts,
		Kind:           event.KindResourceChange,
		SourceID:       player,
		TargetID:       player,
		AbilityID:      ability,
		ResourceType:   resourceType,
		ResourceChange: amount,
	}
}

func spend(ts int64, resourceType int, cost, ability int64) event.Event {
	ev := cast(ts, ability)
	ev.ResourceType = resourceType
	ev.ResourceCost = cost
	return ev
}

func resourcesOf(pools ...PoolConfig) engine.Spec {
	return ResourcesSpec(ResourcesConfig{Pools: pools})
}

// Capacity 100, current 90, gain of 30 at t=1.
func TestResources_GainOverCapacity(t *testing.T) {
	res := runModules(t, engine.RunInfo{EntityID: player},
		[]event.Event{gain(1, mana, 30, manaTideTot)},
		resourcesOf(PoolConfig{Name: "mana", Type: mana, Capacity: 100, Initial: 90}),
	)
	r := mustInstance[*Resources](t, res, ResourcesModule)

	p, ok := r.Pool(mana)
	require.True(t, ok)
	assert.Equal(t, int64(100), p.Current)
	assert.Equal(t, int64(20), p.Wasted)
	assert.Equal(t, int64(30), p.Generated)
	assert.Equal(t, Breakdown{Generated: 30, Wasted: 20}, p.Ability(manaTideTot))
}

func TestResources_WasteFormula(t *testing.T) {
	tests := []struct {
		initial, capacity, amount int64
		wantWaste, wantCurrent    int64
	}{
		{0, 100, 30, 0, 30},
		{70, 100, 30, 0, 100},
		{71, 100, 30, 1, 100},
		{100, 100, 5, 5, 100},
		{0, 5, 50, 45, 5},
	}

	for _, tt := range tests {
		res := runModules(t, engine.RunInfo{},
			[]event.Event{gain(0, holyPower, tt.amount, 1)},
			resourcesOf(PoolConfig{Name: "hp", Type: holyPower, Capacity: tt.capacity, Initial: tt.initial}),
		)
		p, _ := mustInstance[*Resources](t, res, ResourcesModule).Pool(holyPower)

		// wasted grows by exactly max(0, gained - (capacity - current))
		assert.Equal(t, max(0, tt.amount-(tt.capacity-tt.initial)), p.Wasted)
		assert.Equal(t, tt.wantWaste, p.Wasted)
		assert.Equal(t, tt.wantCurrent, p.Current)
		assert.Equal(t, tt.amount, p.Generated)
	}
}

func TestResources_SpendAndUnderflow(t *testing.T) {
	res := runModules(t, engine.RunInfo{EntityID: player},
		[]event.Event{
			spend(0, holyPower, 3, arcaneShot),
			gain(1, holyPower, 2, 1),
			spend(2, holyPower, 5, arcaneShot),
		},
		resourcesOf(PoolConfig{Name: "hp", Type: holyPower, Capacity: 5, Initial: 3}),
	)
	r := mustInstance[*Resources](t, res, ResourcesModule)
	p, _ := r.Pool(holyPower)

	assert.Equal(t, int64(0), p.Current)
	assert.Equal(t, int64(8), p.Spent)
	assert.Equal(t, int64(8), p.Ability(arcaneShot).Spent)

	anomalies := res.AnomaliesFor(ResourcesModule)
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyResourceUnderflow, anomalies[0].Code)
	assert.Equal(t, int64(2), anomalies[0].Timestamp)
	assert.Contains(t, anomalies[0].Message, "exceeds current 2")
}

func TestResources_CurrentStaysInBounds(t *testing.T) {
	events := []event.Event{
		gain(0, mana, 500, 1),
		spend(1, mana, 900, 2),
		gain(2, mana, 80, 1),
		spend(3, mana, 10, 2),
		gain(4, mana, 1000, 1),
	}
	// Capacity drops below current on the last change
	events = append(events, event.Event{
		Timestamp: 5, Kind: event.KindResourceChange, TargetID: player,
		ResourceType: mana, ResourceChange: 1, ResourceMax: 50,
	})

	res := runModules(t, engine.RunInfo{},
		events,
		resourcesOf(PoolConfig{Name: "mana", Type: mana, Capacity: 1000, Initial: 1000}),
	)
	r := mustInstance[*Resources](t, res, ResourcesModule)
	p, _ := r.Pool(mana)

	assert.Equal(t, int64(50), p.Capacity)
	assert.Equal(t, int64(50), p.Current)
	assert.GreaterOrEqual(t, p.Current, int64(0))
	assert.LessOrEqual(t, p.Current, p.Capacity)
}

func TestResources_NegativeChangeIsSpend(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{gain(0, mana, -40, 7)},
		resourcesOf(PoolConfig{Name: "mana", Type: mana, Capacity: 100, Initial: 100}),
	)
	p, _ := mustInstance[*Resources](t, res, ResourcesModule).Pool(mana)
	assert.Equal(t, int64(60), p.Current)
	assert.Equal(t, int64(40), p.Spent)
	assert.Equal(t, int64(0), p.Generated)
}

func TestResources_EntityFilter(t *testing.T) {
	foreignGain := gain(0, mana, 10, 1)
	foreignGain.TargetID = 2
	foreignSpend := spend(1, mana, 10, 2)
	foreignSpend.SourceID = 2
	untracked := gain(2, holyPower, 1, 1)

	res := runModules(t, engine.RunInfo{EntityID: player},
		[]event.Event{foreignGain, foreignSpend, untracked},
		resourcesOf(PoolConfig{Name: "mana", Type: mana, Capacity: 100, Initial: 50}),
	)
	r := mustInstance[*Resources](t, res, ResourcesModule)
	p, _ := r.Pool(mana)
	assert.Equal(t, int64(50), p.Current)
	assert.False(t, r.Active())

	_, ok := r.Pool(holyPower)
	assert.False(t, ok)
}

func TestResources_Breakdown(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{
			gain(0, holyPower, 3, 20),
			gain(1, holyPower, 3, 10),
			spend(2, holyPower, 3, 30),
		},
		resourcesOf(PoolConfig{Name: "hp", Type: holyPower, Capacity: 5}),
	)
	p, _ := mustInstance[*Resources](t, res, ResourcesModule).Pool(holyPower)

	assert.Equal(t, []int64{10, 20, 30}, p.Abilities())
	assert.Equal(t, Breakdown{Generated: 3, Wasted: 1}, p.Ability(10))
	assert.Equal(t, Breakdown{Generated: 3}, p.Ability(20))
	assert.Equal(t, Breakdown{Spent: 3}, p.Ability(30))
	assert.Equal(t, Breakdown{}, p.Ability(40))
}

func TestResources_MetricsAndSuggestions(t *testing.T) {
	res := runModules(t, engine.RunInfo{},
		[]event.Event{gain(0, holyPower, 4, 1), gain(1, holyPower, 4, 1)},
		ResourcesSpec(ResourcesConfig{
			Pools: []PoolConfig{{Name: "hp", Type: holyPower, Capacity: 5}},
			Thresholds: threshold.Set{
				"hp.wasted_ratio": {
					Comparison: threshold.GreaterThan,
					Minor:      0.05,
					Average:    0.1,
					Major:      0.2,
					Style:      threshold.StylePercentage,
				},
			},
		}),
	)
	r := mustInstance[*Resources](t, res, ResourcesModule)

	m := r.Metrics()
	assert.Equal(t, int64(8), m["hp.generated"])
	assert.Equal(t, int64(3), m["hp.wasted"])
	assert.Equal(t, int64(5), m["hp.current"])
	assert.InDelta(t, 0.375, m["hp.wasted_ratio"], 1e-9)

	sugs := r.Suggestions()
	require.Len(t, sugs, 1)
	assert.Equal(t, threshold.SeverityMajor, sugs[0].Severity)
	assert.Equal(t, "37.50%", sugs[0].Display)
}

func TestResources_InvalidConfig(t *testing.T) {
	res := runModules(t, engine.RunInfo{}, nil, resourcesOf(PoolConfig{Name: "mana", Type: mana}))
	m, _ := res.Module(ResourcesModule)
	assert.Equal(t, engine.StatusUnavailable, m.Status)
}
