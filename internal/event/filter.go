package event

// Predicate selects the events a subscription receives.
type Predicate func(Event) bool

// Filter is a declarative predicate over kind, ability and actors.
//
// Zero-valued fields are wildcards:
//   - Kinds empty: any kind
//   - Abilities empty: any ability
//   - SourceID / TargetID zero: any actor
type Filter struct {
	Kinds     []Kind
	Abilities []int64
	SourceID  int64
	TargetID  int64
}

// Match returns true only if ALL set conditions are satisfied.
func (f Filter) Match(ev Event) bool {
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Abilities) > 0 && !containsInt(f.Abilities, ev.AbilityID) {
		return false
	}
	if f.SourceID != 0 && f.SourceID != ev.SourceID {
		return false
	}
	if f.TargetID != 0 && f.TargetID != ev.TargetID {
		return false
	}
	return true
}

// Predicate returns f.Match as a Predicate.
func (f Filter) Predicate() Predicate {
	return f.Match
}

// Any matches every event.
func Any(Event) bool { return true }

// And combines predicates; all must match.
func And(preds ...Predicate) Predicate {
	return func(ev Event) bool {
		for _, p := range preds {
			if !p(ev) {
				return false
			}
		}
		return true
	}
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func containsInt(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
