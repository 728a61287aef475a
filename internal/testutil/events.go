package testutil

import "github.com/roach88/combatlog/internal/event"

// LogBuilder assembles event sequences for tests. All events are performed
// by, and land on, Player unless a method says otherwise.
type LogBuilder struct {
	Player int64
	Enemy  int64
	events []event.Event
}

// NewLogBuilder creates a builder for player 1 against enemy 2.
func NewLogBuilder() *LogBuilder {
	return &LogBuilder{Player: 1, Enemy: 2}
}

// Cast adds a cast by the player at the enemy.
func (b *LogBuilder) Cast(ts, ability int64) *LogBuilder {
	return b.Add(event.Event{Timestamp: ts, Kind: event.KindCast, SourceID: b.Player, TargetID: b.Enemy, AbilityID: ability})
}

// Spend adds a cast carrying a resource cost.
func (b *LogBuilder) Spend(ts, ability int64, resourceType int, cost int64) *LogBuilder {
	return b.Add(event.Event{
		Timestamp: ts, Kind: event.KindCast, SourceID: b.Player, TargetID: b.Enemy, AbilityID: ability,
		ResourceType: resourceType, ResourceCost: cost,
	})
}

// Gain adds a resource change landing on the player.
func (b *LogBuilder) Gain(ts, ability int64, resourceType int, amount int64) *LogBuilder {
	return b.Add(event.Event{
		Timestamp: ts, Kind: event.KindResourceChange, SourceID: b.Player, TargetID: b.Player, AbilityID: ability,
		ResourceType: resourceType, ResourceChange: amount,
	})
}

// Buff adds a buff event of kind on the player.
func (b *LogBuilder) Buff(ts int64, kind event.Kind, ability int64) *LogBuilder {
	return b.Add(event.Event{Timestamp: ts, Kind: kind, SourceID: b.Player, TargetID: b.Player, AbilityID: ability})
}

// Add appends an arbitrary event.
func (b *LogBuilder) Add(ev event.Event) *LogBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events returns a copy of the built sequence.
func (b *LogBuilder) Events() []event.Event {
	out := make([]event.Event, len(b.events))
	copy(out, b.events)
	return out
}
