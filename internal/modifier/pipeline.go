package modifier

import "sort"

// Resolve folds units over base for the given key: value_n = unit_n(value_n-1).
//
// Units are applied in source precedence order (doctrine, personality, item,
// consumable); within a band, registration order is preserved. Non-matching
// units pass the value through untouched. The empty list is the identity.
// The pipeline performs no normalization of its own — each unit decides
// additive vs. multiplicative semantics for its own bonus.
func Resolve(key Key, base float64, units []Unit, ctx Context) float64 {
	ordered := orderUnits(units)
	value := base
	for _, u := range ordered {
		if !u.AppliesTo(key) {
			continue
		}
		value = u.Apply(key, value, ctx)
	}
	return value
}

// orderUnits returns a precedence-sorted copy. The sort is stable so callers
// attaching several items keep their declared order; the input slice is
// treated as immutable for the duration of the resolve.
func orderUnits(units []Unit) []Unit {
	ordered := make([]Unit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Source().precedence() < ordered[j].Source().precedence()
	})
	return ordered
}
