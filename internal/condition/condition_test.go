package condition

import (
	"errors"
	"testing"
)

func intp(n int) *int { return &n }

func env(year, month int) Env {
	return Env{SessionID: "s1", Year: year, Month: month, StartYear: 180}
}

func envWithFactions(year, month, remaining int) Env {
	e := env(year, month)
	e.RemainingFactions = &remaining
	return e
}

func mustBuild(t *testing.T, def Def) Node {
	t.Helper()
	n, err := Build(def)
	if err != nil {
		t.Fatalf("Build(%+v) error: %v", def, err)
	}
	return n
}

func TestBuild_Errors(t *testing.T) {
	cases := []struct {
		name string
		def  Def
	}{
		{"empty kind", Def{}},
		{"unknown kind", Def{Kind: "lunar_phase"}},
		{"unknown comparator", Def{Kind: "date", Cmp: "~=", Year: intp(200)}},
		{"date both operands nil", Def{Kind: "date", Cmp: "=="}},
		{"interval zero", Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 1}},
		{"interval bad anchor month", Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 13, Interval: 6}},
		{"interval end_year without end_month", Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 1, Interval: 6, EndYear: intp(190)}},
		{"faction_count without threshold", Def{Kind: "faction_count", Cmp: "<"}},
		{"and without children", Def{Kind: "and"}},
		{"not with two children", Def{Kind: "not", Children: []Def{
			{Kind: "date", Cmp: "==", Year: intp(200)},
			{Kind: "date", Cmp: "==", Year: intp(201)},
		}}},
		{"bad nested child", Def{Kind: "or", Children: []Def{{Kind: "bogus"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Build(tc.def); !errors.Is(err, ErrInvalidExpression) {
				t.Errorf("Build = %v, want ErrInvalidExpression", err)
			}
		})
	}
}

func TestDate_Wildcards(t *testing.T) {
	cases := []struct {
		name string
		def  Def
		env  Env
		want bool
	}{
		{"exact match", Def{Kind: "date", Cmp: "==", Year: intp(200), Month: intp(3)}, env(200, 3), true},
		{"exact mismatch month", Def{Kind: "date", Cmp: "==", Year: intp(200), Month: intp(3)}, env(200, 4), false},
		{"year wildcard matches any year", Def{Kind: "date", Cmp: "==", Month: intp(1)}, env(999, 1), true},
		{"year wildcard month mismatch", Def{Kind: "date", Cmp: "==", Month: intp(1)}, env(999, 2), false},
		{"month wildcard matches any month", Def{Kind: "date", Cmp: "==", Year: intp(200)}, env(200, 12), true},
		{"lexicographic lt same year", Def{Kind: "date", Cmp: "<", Year: intp(200), Month: intp(6)}, env(200, 5), true},
		{"lexicographic lt earlier year later month", Def{Kind: "date", Cmp: "<", Year: intp(200), Month: intp(6)}, env(199, 12), true},
		{"ge on boundary", Def{Kind: "date", Cmp: ">=", Year: intp(200), Month: intp(6)}, env(200, 6), true},
		{"ne true", Def{Kind: "date", Cmp: "!=", Year: intp(200)}, env(201, 1), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(mustBuild(t, tc.def), tc.env)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got.Value != tc.want {
				t.Errorf("Evaluate = %v, want %v (trace %v)", got.Value, tc.want, got.Trace)
			}
		})
	}
}

func TestRelativeDate(t *testing.T) {
	// Snapshot year 185 with start year 180 is relative year 5.
	def := Def{Kind: "relative_date", Cmp: "==", Year: intp(5)}
	got, err := Evaluate(mustBuild(t, def), env(185, 7))
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !got.Value {
		t.Errorf("relative year 5 should match year 185 with start 180")
	}

	got, err = Evaluate(mustBuild(t, def), env(186, 7))
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if got.Value {
		t.Errorf("relative year 5 should not match year 186")
	}
}

func TestInterval(t *testing.T) {
	every12 := Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 1, Interval: 12}
	cases := []struct {
		name string
		def  Def
		env  Env
		want bool
	}{
		{"anchor itself", every12, env(180, 1), true},
		{"one period later", every12, env(181, 1), true},
		{"four periods later", every12, env(184, 1), true},
		{"off-cycle month", every12, env(184, 6), false},
		{"before anchor", every12, env(179, 1), false},
		{"end bound inclusive", Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 1, Interval: 12,
			EndYear: intp(182), EndMonth: intp(1)}, env(182, 1), true},
		{"past end bound", Def{Kind: "interval", AnchorYear: 180, AnchorMonth: 1, Interval: 12,
			EndYear: intp(182), EndMonth: intp(1)}, env(183, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(mustBuild(t, tc.def), tc.env)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got.Value != tc.want {
				t.Errorf("Evaluate = %v, want %v (trace %v)", got.Value, tc.want, got.Trace)
			}
		})
	}
}

func TestFactionCount(t *testing.T) {
	le1 := Def{Kind: "faction_count", Cmp: "<=", Threshold: intp(1)}
	lt1 := Def{Kind: "faction_count", Cmp: "<", Threshold: intp(1)}

	got, err := Evaluate(mustBuild(t, le1), envWithFactions(200, 1, 1))
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !got.Value {
		t.Errorf("<= 1 with one faction remaining should hold")
	}

	got, err = Evaluate(mustBuild(t, lt1), envWithFactions(200, 1, 1))
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if got.Value {
		t.Errorf("< 1 with one faction remaining should not hold")
	}
}

func TestFactionCount_MissingEnv(t *testing.T) {
	def := Def{Kind: "faction_count", Cmp: "<=", Threshold: intp(1)}
	_, err := Evaluate(mustBuild(t, def), env(200, 1))
	var missing ErrMissingEnv
	if !errors.As(err, &missing) {
		t.Fatalf("Evaluate = %v, want ErrMissingEnv", err)
	}
}

func TestCombinators(t *testing.T) {
	yes := Def{Kind: "date", Cmp: "==", Year: intp(200)}
	no := Def{Kind: "date", Cmp: "==", Year: intp(999)}
	e := env(200, 1)

	cases := []struct {
		name string
		def  Def
		want bool
	}{
		{"and all true", Def{Kind: "and", Children: []Def{yes, yes}}, true},
		{"and one false", Def{Kind: "and", Children: []Def{yes, no}}, false},
		{"or one true", Def{Kind: "or", Children: []Def{no, yes}}, true},
		{"or all false", Def{Kind: "or", Children: []Def{no, no}}, false},
		{"not flips", Def{Kind: "not", Children: []Def{no}}, true},
		{"xor exactly one", Def{Kind: "xor", Children: []Def{yes, no, no}}, true},
		{"xor two hits", Def{Kind: "xor", Children: []Def{yes, yes, no}}, false},
		{"xor zero hits", Def{Kind: "xor", Children: []Def{no, no}}, false},
		{"nand negates and", Def{Kind: "nand", Children: []Def{yes, yes}}, false},
		{"nand one false", Def{Kind: "nand", Children: []Def{yes, no}}, true},
		{"nor all false", Def{Kind: "nor", Children: []Def{no, no}}, true},
		{"nor one true", Def{Kind: "nor", Children: []Def{no, yes}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(mustBuild(t, tc.def), e)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got.Value != tc.want {
				t.Errorf("Evaluate = %v, want %v (trace %v)", got.Value, tc.want, got.Trace)
			}
		})
	}
}

func TestDoubleNegation(t *testing.T) {
	for _, inner := range []Def{
		{Kind: "date", Cmp: "==", Year: intp(200)},
		{Kind: "date", Cmp: "==", Year: intp(999)},
	} {
		plain := mustBuild(t, inner)
		doubled := mustBuild(t, Def{Kind: "not", Children: []Def{
			{Kind: "not", Children: []Def{inner}},
		}})
		e := env(200, 1)

		want, err := Evaluate(plain, e)
		if err != nil {
			t.Fatalf("Evaluate error: %v", err)
		}
		got, err := Evaluate(doubled, e)
		if err != nil {
			t.Fatalf("Evaluate error: %v", err)
		}
		if got.Value != want.Value {
			t.Errorf("not(not(x)) = %v, want %v", got.Value, want.Value)
		}
	}
}

func TestEvaluate_TraceCoversLeaves(t *testing.T) {
	def := Def{Kind: "and", Children: []Def{
		{Kind: "date", Cmp: "==", Year: intp(200)},
		{Kind: "interval", AnchorYear: 180, AnchorMonth: 1, Interval: 12},
	}}
	got, err := Evaluate(mustBuild(t, def), env(200, 1))
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(got.Trace) < 3 {
		t.Errorf("trace has %d entries, want at least 3: %v", len(got.Trace), got.Trace)
	}
}
