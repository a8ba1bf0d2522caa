package condition

// DateNode compares the snapshot date against a rule date. Either field of
// the rule may be nil (wildcard); a wildcard field is excluded from both
// sides before comparing, so a year-only rule ignores the month entirely.
type DateNode struct {
	Cmp   Comparator
	Year  *int
	Month *int
}

func (n *DateNode) eval(env Env, trace *[]string) (bool, error) {
	v := compareDate(n.Cmp, n.Year, n.Month, env.Year, env.Month)
	note(trace, "date(%s %s): %t", n.Cmp, dateLabel(n.Year, n.Month), v)
	return v, nil
}

// RelativeDateNode is a DateNode evaluated against (year - startYear, month).
type RelativeDateNode struct {
	Cmp   Comparator
	Year  *int
	Month *int
}

func (n *RelativeDateNode) eval(env Env, trace *[]string) (bool, error) {
	v := compareDate(n.Cmp, n.Year, n.Month, env.Year-env.StartYear, env.Month)
	note(trace, "relative_date(%s %s): %t", n.Cmp, dateLabel(n.Year, n.Month), v)
	return v, nil
}

// compareDate compares (envYear, envMonth) against the rule tuple using
// lexicographic order over the non-wildcard fields.
func compareDate(cmp Comparator, ruleYear, ruleMonth *int, envYear, envMonth int) bool {
	sign := 0
	if ruleYear != nil {
		sign = compareInts(envYear, *ruleYear)
	}
	if sign == 0 && ruleMonth != nil {
		sign = compareInts(envMonth, *ruleMonth)
	}
	return cmp.holds(sign)
}

func dateLabel(year, month *int) string {
	switch {
	case year != nil && month != nil:
		return itoa(*year) + "/" + itoa(*month)
	case year != nil:
		return itoa(*year) + "/*"
	default:
		return "*/" + itoa(*month)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// IntervalNode fires when the number of elapsed months since the anchor is a
// non-negative multiple of the interval, and the current time has not passed
// the optional end anchor.
type IntervalNode struct {
	AnchorYear  int
	AnchorMonth int
	Interval    int
	EndYear     *int
	EndMonth    *int
}

func (n *IntervalNode) eval(env Env, trace *[]string) (bool, error) {
	elapsed := env.Months() - (n.AnchorYear*12 + n.AnchorMonth)
	hit := elapsed >= 0 && elapsed%n.Interval == 0
	if hit && n.EndYear != nil {
		end := *n.EndYear*12 + *n.EndMonth
		hit = env.Months() <= end
	}
	note(trace, "interval(anchor %d/%d every %d): %t", n.AnchorYear, n.AnchorMonth, n.Interval, hit)
	return hit, nil
}

// FactionCountNode compares the precomputed remaining-faction count against a
// threshold.
type FactionCountNode struct {
	Cmp       Comparator
	Threshold int
}

func (n *FactionCountNode) eval(env Env, trace *[]string) (bool, error) {
	if env.RemainingFactions == nil {
		return false, ErrMissingEnv("remainingFactionCount")
	}
	v := n.Cmp.holds(compareInts(*env.RemainingFactions, n.Threshold))
	note(trace, "faction_count(%d %s %d): %t", *env.RemainingFactions, n.Cmp, n.Threshold, v)
	return v, nil
}
