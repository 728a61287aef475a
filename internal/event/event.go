package event

import "fmt"

// Kind identifies the category of a combat log event.
//
// Kind is an open set: unknown kinds are carried through the log and are
// simply not matched by any subscription that does not name them.
type Kind string

const (
	KindCast            Kind = "cast"
	KindBeginCast       Kind = "begincast"
	KindDamage          Kind = "damage"
	KindHeal            Kind = "heal"
	KindApplyBuff       Kind = "applybuff"
	KindApplyBuffStack  Kind = "applybuffstack"
	KindRemoveBuffStack Kind = "removebuffstack"
	KindRefreshBuff     Kind = "refreshbuff"
	KindRemoveBuff      Kind = "removebuff"
	KindResourceChange  Kind = "resourcechange"
	KindDeath           Kind = "death"
)

// Event is a single timestamped occurrence in a combat log.
//
// Events are values: handlers receive copies and cannot mutate the log.
// Payload fields are kind-specific and zero when not applicable.
type Event struct {
	// Seq is the arrival position within the log, assigned by NewLog.
	Seq int64 `json:"seq,omitempty" yaml:"seq,omitempty"`

	// Timestamp is milliseconds since report start.
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`

	Kind      Kind  `json:"kind" yaml:"kind"`
	SourceID  int64 `json:"source,omitempty" yaml:"source,omitempty"`
	TargetID  int64 `json:"target,omitempty" yaml:"target,omitempty"`
	AbilityID int64 `json:"ability,omitempty" yaml:"ability,omitempty"`

	// damage / heal
	Amount   int64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Absorbed int64 `json:"absorbed,omitempty" yaml:"absorbed,omitempty"`
	Overheal int64 `json:"overheal,omitempty" yaml:"overheal,omitempty"`

	// resourcechange gains and cast costs
	ResourceType   int   `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
	ResourceChange int64 `json:"resource_change,omitempty" yaml:"resource_change,omitempty"`
	ResourceCost   int64 `json:"resource_cost,omitempty" yaml:"resource_cost,omitempty"`
	ResourceMax    int64 `json:"resource_max,omitempty" yaml:"resource_max,omitempty"`

	// applybuffstack / removebuffstack
	Stacks int `json:"stacks,omitempty" yaml:"stacks,omitempty"`
}

// Less reports whether a is ordered before b.
func Less(a, b Event) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Seq < b.Seq
}

// String returns a compact identity for logs and error messages.
func (e Event) String() string {
	return fmt.Sprintf("#%d@%d %s ability=%d src=%d tgt=%d",
		e.Seq, e.Timestamp, e.Kind, e.AbilityID, e.SourceID, e.TargetID)
}

// IsBuffEvent reports whether the event changes buff presence or stacks.
func (e Event) IsBuffEvent() bool {
	switch e.Kind {
	case KindApplyBuff, KindApplyBuffStack, KindRemoveBuffStack, KindRefreshBuff, KindRemoveBuff:
		return true
	}
	return false
}
