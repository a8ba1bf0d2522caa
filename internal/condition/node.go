// Package condition implements the boolean trigger engine: an immutable
// expression tree built from typed leaves and logical combinators, evaluated
// against a point-in-time environment snapshot.
package condition

import "fmt"

// Env is the read-only game-time snapshot a tree is evaluated against. It is
// assembled fresh per tick/command and never mutated by evaluation.
type Env struct {
	SessionID string
	Year      int
	Month     int // 1..12
	StartYear int

	// RemainingFactions is the precomputed count of factions still in play.
	// The engine never aggregates during evaluation; a tree containing a
	// faction-count leaf requires the caller to supply it.
	RemainingFactions *int
}

// Months returns the absolute month index of the snapshot (year*12 + month).
func (e Env) Months() int {
	return e.Year*12 + e.Month
}

// Node is the common interface of all tree nodes. Trees are immutable once
// built and safe for concurrent evaluation.
type Node interface {
	eval(env Env, trace *[]string) (bool, error)
}

// Result pairs the boolean outcome with a per-node evaluation trace.
type Result struct {
	Value bool
	Trace []string
}

// Evaluate walks the tree against env. Evaluation is synchronous and
// side-effect free; a missing required environment field surfaces as an error.
func Evaluate(n Node, env Env) (Result, error) {
	var trace []string
	v, err := n.eval(env, &trace)
	return Result{Value: v, Trace: trace}, err
}

func note(trace *[]string, format string, args ...any) {
	*trace = append(*trace, fmt.Sprintf(format, args...))
}

// Comparator is one of the six recognized comparison symbols.
type Comparator string

const (
	CmpEq Comparator = "=="
	CmpNe Comparator = "!="
	CmpLt Comparator = "<"
	CmpGt Comparator = ">"
	CmpLe Comparator = "<="
	CmpGe Comparator = ">="
)

// ParseComparator validates symbol membership at build time.
func ParseComparator(s string) (Comparator, error) {
	switch Comparator(s) {
	case CmpEq, CmpNe, CmpLt, CmpGt, CmpLe, CmpGe:
		return Comparator(s), nil
	}
	return "", fmt.Errorf("%w: unknown comparator %q", ErrInvalidExpression, s)
}

// holds applies the comparator to an ordering: sign is -1, 0 or 1 for
// left < right, left == right, left > right.
func (c Comparator) holds(sign int) bool {
	switch c {
	case CmpEq:
		return sign == 0
	case CmpNe:
		return sign != 0
	case CmpLt:
		return sign < 0
	case CmpGt:
		return sign > 0
	case CmpLe:
		return sign <= 0
	case CmpGe:
		return sign >= 0
	}
	return false
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Op is a logical combinator kind.
type Op string

const (
	OpAnd  Op = "and"
	OpOr   Op = "or"
	OpNot  Op = "not"
	OpXor  Op = "xor"
	OpNand Op = "nand"
	OpNor  Op = "nor"
)
