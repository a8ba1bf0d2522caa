// Package modifier computes final numeric outcomes (costs, yields, battle
// strengths) by folding category-scoped adjustments over a base value.
package modifier

// Key scopes an adjustment to one numeric outcome, e.g. {"training", "cost"}.
type Key struct {
	Category    string
	Subcategory string
}

// Source classifies where a unit comes from. Sources have a declared
// precedence: faction doctrine applies first, then personality, then
// equipped items, then consumables. The order is a balance contract —
// additive and multiplicative adjustments do not commute.
type Source string

const (
	SourceDoctrine    Source = "doctrine"
	SourcePersonality Source = "personality"
	SourceItem        Source = "item"
	SourceConsumable  Source = "consumable"
)

// precedence bands leave room for future sources between existing ones.
func (s Source) precedence() int {
	switch s {
	case SourceDoctrine:
		return 0
	case SourcePersonality:
		return 100
	case SourceItem:
		return 200
	case SourceConsumable:
		return 300
	}
	return 400
}

// Context carries the actor facts a unit may scale by. Units must stay
// stateless and deterministic; stochastic effects belong to the caller.
type Context struct {
	ActorID    int64
	FactionID  int64
	Leadership int
	Strength   int
	Intellect  int
}

// Unit is a single stateless strategy object contributing an adjustment for
// the keys it applies to. A unit must not assume any other unit's presence.
type Unit interface {
	ID() string
	Source() Source
	AppliesTo(key Key) bool
	// Apply returns the adjusted value. It is only called for matching keys.
	Apply(key Key, value float64, ctx Context) float64
}

// adjustment is the common value-function unit used by the built-in catalog.
type adjustment struct {
	id     string
	source Source
	key    Key
	fn     func(value float64, ctx Context) float64
}

func (a *adjustment) ID() string             { return a.id }
func (a *adjustment) Source() Source         { return a.source }
func (a *adjustment) AppliesTo(key Key) bool { return a.key == key }
func (a *adjustment) Apply(key Key, v float64, ctx Context) float64 {
	return a.fn(v, ctx)
}

// Multiplier builds a unit that scales a single outcome by factor.
func Multiplier(id string, source Source, key Key, factor float64) Unit {
	return &adjustment{id: id, source: source, key: key, fn: func(v float64, _ Context) float64 {
		return v * factor
	}}
}

// Flat builds a unit that shifts a single outcome by delta.
func Flat(id string, source Source, key Key, delta float64) Unit {
	return &adjustment{id: id, source: source, key: key, fn: func(v float64, _ Context) float64 {
		return v + delta
	}}
}

// Func builds a unit with an arbitrary deterministic value function.
func Func(id string, source Source, key Key, fn func(value float64, ctx Context) float64) Unit {
	return &adjustment{id: id, source: source, key: key, fn: fn}
}
