package condition

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression marks a malformed condition definition: unknown kind
// or operator, wrong arity, or both comparison operands null. Surfaced at
// build time, never deferred to evaluation.
var ErrInvalidExpression = errors.New("invalid condition expression")

// ErrMissingEnv reports a required environment field absent from the snapshot.
type ErrMissingEnv string

func (e ErrMissingEnv) Error() string {
	return "environment field missing: " + string(e)
}

// Def is the declarative form a tree is built from. Leaves set Kind plus
// their operands; combinators set Kind plus Children.
type Def struct {
	Kind string `yaml:"kind" json:"kind"`

	// Leaf operands.
	Cmp         string `yaml:"cmp,omitempty" json:"cmp,omitempty"`
	Year        *int   `yaml:"year,omitempty" json:"year,omitempty"`
	Month       *int   `yaml:"month,omitempty" json:"month,omitempty"`
	AnchorYear  int    `yaml:"anchor_year,omitempty" json:"anchor_year,omitempty"`
	AnchorMonth int    `yaml:"anchor_month,omitempty" json:"anchor_month,omitempty"`
	Interval    int    `yaml:"interval,omitempty" json:"interval,omitempty"`
	EndYear     *int   `yaml:"end_year,omitempty" json:"end_year,omitempty"`
	EndMonth    *int   `yaml:"end_month,omitempty" json:"end_month,omitempty"`
	Threshold   *int   `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	Children []Def `yaml:"children,omitempty" json:"children,omitempty"`
}

// Build constructs and validates a tree from its definition. All structural
// errors surface here so evaluation can assume a well-formed tree.
func Build(def Def) (Node, error) {
	switch def.Kind {
	case "date", "relative_date":
		cmp, err := ParseComparator(def.Cmp)
		if err != nil {
			return nil, err
		}
		if def.Year == nil && def.Month == nil {
			return nil, fmt.Errorf("%w: %s leaf needs a year or a month", ErrInvalidExpression, def.Kind)
		}
		if def.Kind == "date" {
			return &DateNode{Cmp: cmp, Year: def.Year, Month: def.Month}, nil
		}
		return &RelativeDateNode{Cmp: cmp, Year: def.Year, Month: def.Month}, nil

	case "interval":
		if def.Interval <= 0 {
			return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidExpression, def.Interval)
		}
		if def.AnchorMonth < 1 || def.AnchorMonth > 12 {
			return nil, fmt.Errorf("%w: anchor_month %d out of range", ErrInvalidExpression, def.AnchorMonth)
		}
		if (def.EndYear == nil) != (def.EndMonth == nil) {
			return nil, fmt.Errorf("%w: end_year and end_month must be set together", ErrInvalidExpression)
		}
		return &IntervalNode{
			AnchorYear:  def.AnchorYear,
			AnchorMonth: def.AnchorMonth,
			Interval:    def.Interval,
			EndYear:     def.EndYear,
			EndMonth:    def.EndMonth,
		}, nil

	case "faction_count":
		cmp, err := ParseComparator(def.Cmp)
		if err != nil {
			return nil, err
		}
		if def.Threshold == nil {
			return nil, fmt.Errorf("%w: faction_count leaf needs a threshold", ErrInvalidExpression)
		}
		return &FactionCountNode{Cmp: cmp, Threshold: *def.Threshold}, nil

	case string(OpAnd), string(OpOr), string(OpXor), string(OpNand), string(OpNor):
		if len(def.Children) == 0 {
			return nil, fmt.Errorf("%w: %s needs at least one child", ErrInvalidExpression, def.Kind)
		}
		return buildCombinator(Op(def.Kind), def.Children)

	case string(OpNot):
		if len(def.Children) != 1 {
			return nil, fmt.Errorf("%w: not takes exactly one child, got %d", ErrInvalidExpression, len(def.Children))
		}
		return buildCombinator(OpNot, def.Children)

	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidExpression)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidExpression, def.Kind)
	}
}

func buildCombinator(op Op, defs []Def) (Node, error) {
	children := make([]Node, 0, len(defs))
	for i, d := range defs {
		c, err := Build(d)
		if err != nil {
			return nil, fmt.Errorf("%s child %d: %w", op, i, err)
		}
		children = append(children, c)
	}
	return &Combinator{Op: op, Children: children}, nil
}
