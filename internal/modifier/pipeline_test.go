package modifier

import (
	"math"
	"testing"
)

func TestResolve_EmptyListIsIdentity(t *testing.T) {
	for _, base := range []float64{0, 1, 100, -42.5} {
		if got := Resolve(KeyTrainingCost, base, nil, Context{}); got != base {
			t.Errorf("Resolve(%v, no units) = %v, want %v", base, got, base)
		}
	}
}

func TestResolve_PrecedenceOrder(t *testing.T) {
	// A 0.8 doctrine multiplier and a -10 item flat do not commute:
	// 100*0.8-10 = 70, while (100-10)*0.8 = 72. Doctrine applies first
	// regardless of the order the units arrive in.
	drill := Multiplier("doctrine_test", SourceDoctrine, KeyTrainingCost, 0.8)
	manual := Flat("item_test", SourceItem, KeyTrainingCost, -10)

	for name, units := range map[string][]Unit{
		"declared order": {drill, manual},
		"reversed order": {manual, drill},
	} {
		got := Resolve(KeyTrainingCost, 100, units, Context{})
		if got != 70 {
			t.Errorf("%s: Resolve = %v, want 70", name, got)
		}
	}
}

func TestResolve_StableWithinBand(t *testing.T) {
	// Two items on the same key keep their declared order: +10 then x2
	// gives 220 from base 100, not 210.
	a := Flat("item_a", SourceItem, KeyBattleAttack, 10)
	b := Multiplier("item_b", SourceItem, KeyBattleAttack, 2)

	if got := Resolve(KeyBattleAttack, 100, []Unit{a, b}, Context{}); got != 220 {
		t.Errorf("Resolve(a then b) = %v, want 220", got)
	}
	if got := Resolve(KeyBattleAttack, 100, []Unit{b, a}, Context{}); got != 210 {
		t.Errorf("Resolve(b then a) = %v, want 210", got)
	}
}

func TestResolve_NonMatchingKeysPassThrough(t *testing.T) {
	units := []Unit{
		Multiplier("doctrine_test", SourceDoctrine, KeyTrainingCost, 0.5),
		Flat("item_test", SourceItem, KeyBattleAttack, 25),
	}
	if got := Resolve(KeyGoldYield, 300, units, Context{}); got != 300 {
		t.Errorf("Resolve on unrelated key = %v, want 300", got)
	}
}

func TestResolve_FuncUsesContext(t *testing.T) {
	scaled := Func("trait_test", SourcePersonality, KeyDevelopGain, func(v float64, ctx Context) float64 {
		return v * float64(ctx.Intellect) / 100
	})
	got := Resolve(KeyDevelopGain, 50, []Unit{scaled}, Context{Intellect: 80})
	if math.Abs(got-40) > 1e-9 {
		t.Errorf("Resolve = %v, want 40", got)
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	drill := Multiplier("doctrine_test", SourceDoctrine, KeyTrainingCost, 0.8)
	manual := Flat("item_test", SourceItem, KeyTrainingCost, -10)
	units := []Unit{manual, drill}

	Resolve(KeyTrainingCost, 100, units, Context{})
	if units[0].ID() != "item_test" || units[1].ID() != "doctrine_test" {
		t.Errorf("input slice reordered: %s, %s", units[0].ID(), units[1].ID())
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Flat("item_dup", SourceItem, KeyTrainingCost, 1))
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on duplicate registration")
		}
	}()
	r.Register(Flat("item_dup", SourceItem, KeyTrainingCost, 2))
}

func TestRegistry_Collect(t *testing.T) {
	r := NewRegistry()
	r.Register(Flat("item_a", SourceItem, KeyTrainingCost, 1))
	r.Register(Flat("item_b", SourceItem, KeyTrainingCost, 2))

	units, err := r.Collect("item_a", "", "item_b")
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("Collect returned %d units, want 2 (empty ids skipped)", len(units))
	}

	if _, err := r.Collect("item_a", "item_missing"); err == nil {
		t.Errorf("Collect with unknown id should error")
	}
}

func TestBuiltin_TrainEndToEnd(t *testing.T) {
	// The stock catalog: drillmaster doctrine (x0.8) plus the Art of War
	// (-10) turn a 100 gold training bill into 70.
	r := Builtin()
	units, err := r.Collect("doctrine_drillmaster", "item_art_of_war")
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if got := Resolve(KeyTrainingCost, 100, units, Context{}); got != 70 {
		t.Errorf("training cost = %v, want 70", got)
	}
}
