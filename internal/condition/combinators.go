package condition

// Combinator is a logical node over child trees.
//
// Short-circuit rules: AND/NAND stop at the first false child, OR/NOR stop at
// the first true child. XOR evaluates every child (true iff exactly one is
// true). NOT has exactly one child, enforced at build time.
type Combinator struct {
	Op       Op
	Children []Node
}

func (n *Combinator) eval(env Env, trace *[]string) (bool, error) {
	switch n.Op {
	case OpNot:
		v, err := n.Children[0].eval(env, trace)
		if err != nil {
			return false, err
		}
		note(trace, "not: %t", !v)
		return !v, nil

	case OpAnd, OpNand:
		all := true
		for _, c := range n.Children {
			v, err := c.eval(env, trace)
			if err != nil {
				return false, err
			}
			if !v {
				all = false
				break
			}
		}
		out := all
		if n.Op == OpNand {
			out = !all
		}
		note(trace, "%s: %t", n.Op, out)
		return out, nil

	case OpOr, OpNor:
		any := false
		for _, c := range n.Children {
			v, err := c.eval(env, trace)
			if err != nil {
				return false, err
			}
			if v {
				any = true
				break
			}
		}
		out := any
		if n.Op == OpNor {
			out = !any
		}
		note(trace, "%s: %t", n.Op, out)
		return out, nil

	case OpXor:
		hits := 0
		for _, c := range n.Children {
			v, err := c.eval(env, trace)
			if err != nil {
				return false, err
			}
			if v {
				hits++
			}
		}
		out := hits == 1
		note(trace, "xor: %t", out)
		return out, nil
	}
	return false, ErrInvalidExpression
}
