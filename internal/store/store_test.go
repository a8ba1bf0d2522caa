package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedFaction(t *testing.T, st *Store, name, doctrine string) int64 {
	t.Helper()
	id, err := st.InsertFaction(context.Background(), &Faction{
		SessionID: "s1", Name: name, Doctrine: doctrine, Gold: 1000, Rice: 1000,
	})
	if err != nil {
		t.Fatalf("insert faction: %v", err)
	}
	return id
}

func TestGeneralRoundtrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	fid := seedFaction(t, st, "Wei", "doctrine_drillmaster")

	cid, err := st.InsertCity(ctx, &City{SessionID: "s1", FactionID: fid, Name: "Luoyang", Population: 1000})
	if err != nil {
		t.Fatalf("insert city: %v", err)
	}
	gid, err := st.InsertGeneral(ctx, &General{
		SessionID: "s1", FactionID: fid, CityID: cid, Name: "Cao Cao",
		Leadership: 95, Strength: 72, Intellect: 91,
		Personality: "trait_stern", Items: Items{"item_art_of_war", "item_red_hare"},
		Troops: 8000, Training: 60, Gold: 500, Rice: 700,
	})
	if err != nil {
		t.Fatalf("insert general: %v", err)
	}

	g, err := st.GeneralByID(ctx, gid)
	if err != nil {
		t.Fatalf("load general: %v", err)
	}
	if g.Name != "Cao Cao" || g.Leadership != 95 || g.Gold != 500 {
		t.Errorf("loaded general = %+v", g)
	}
	if len(g.Items) != 2 || g.Items[0] != "item_art_of_war" {
		t.Errorf("items round trip = %v", g.Items)
	}

	err = st.RunInTx(ctx, func(tx *sqlx.Tx) error {
		g.Gold -= 100
		g.Training = 70
		return SaveGeneralTx(tx, g)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	g, _ = st.GeneralByID(ctx, gid)
	if g.Gold != 400 || g.Training != 70 {
		t.Errorf("after save = gold %d training %d", g.Gold, g.Training)
	}

	if _, err := st.GeneralByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing general = %v, want ErrNotFound", err)
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	fid := seedFaction(t, st, "Wei", "")

	boom := errors.New("boom")
	err := st.RunInTx(ctx, func(tx *sqlx.Tx) error {
		f, err := FactionByIDTx(tx, fid)
		if err != nil {
			return err
		}
		f.Gold = 0
		if err := SaveFactionTx(tx, f); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx = %v, want boom", err)
	}
	f, _ := st.FactionByID(ctx, fid)
	if f.Gold != 1000 {
		t.Errorf("gold = %d after rollback, want 1000", f.Gold)
	}
}

func TestRemainingFactionCount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedFaction(t, st, "Wei", "")
	shu := seedFaction(t, st, "Shu", "")
	seedFaction(t, st, "Wu", "")

	n, err := st.RemainingFactionCount(ctx, "s1")
	if err != nil || n != 3 {
		t.Fatalf("count = %d err %v, want 3", n, err)
	}

	err = st.RunInTx(ctx, func(tx *sqlx.Tx) error {
		f, err := FactionByIDTx(tx, shu)
		if err != nil {
			return err
		}
		f.Eliminated = true
		return SaveFactionTx(tx, f)
	})
	if err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	n, _ = st.RemainingFactionCount(ctx, "s1")
	if n != 2 {
		t.Errorf("count after elimination = %d, want 2", n)
	}
}

func TestGrantFactionResources_SkipsEliminated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	wei := seedFaction(t, st, "Wei", "")
	shu := seedFaction(t, st, "Shu", "")
	err := st.RunInTx(ctx, func(tx *sqlx.Tx) error {
		f, err := FactionByIDTx(tx, shu)
		if err != nil {
			return err
		}
		f.Eliminated = true
		return SaveFactionTx(tx, f)
	})
	if err != nil {
		t.Fatalf("eliminate: %v", err)
	}

	if err := st.GrantFactionResources(ctx, "s1", 500, 0); err != nil {
		t.Fatalf("grant: %v", err)
	}
	f, _ := st.FactionByID(ctx, wei)
	if f.Gold != 1500 {
		t.Errorf("wei gold = %d, want 1500", f.Gold)
	}
	f, _ = st.FactionByID(ctx, shu)
	if f.Gold != 1000 {
		t.Errorf("eliminated shu gold = %d, want untouched 1000", f.Gold)
	}
}

func TestCityDistance(t *testing.T) {
	a := &City{X: 1, Y: 2}
	b := &City{X: 4, Y: 6}
	if d := a.Distance(b); d != 7 {
		t.Errorf("distance = %d, want 7", d)
	}
	if d := b.Distance(a); d != 7 {
		t.Errorf("distance should be symmetric, got %d", d)
	}
}

func TestEnsureSessionMeta_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	start := time.Now()

	m1, err := st.EnsureSessionMeta(ctx, "s1", start)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m1.LastTurnDay != -1 {
		t.Errorf("fresh meta last_turn_day = %d, want -1", m1.LastTurnDay)
	}

	// Second call keeps the original anchor.
	m2, err := st.EnsureSessionMeta(ctx, "s1", start.Add(time.Hour))
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if m2.StartedAtMS != m1.StartedAtMS {
		t.Errorf("anchor moved: %d -> %d", m1.StartedAtMS, m2.StartedAtMS)
	}

	if err := st.SetLastTurnDay(ctx, "s1", 42); err != nil {
		t.Fatalf("set last turn day: %v", err)
	}
	m3, _ := st.EnsureSessionMeta(ctx, "s1", start)
	if m3.LastTurnDay != 42 {
		t.Errorf("last_turn_day = %d, want 42", m3.LastTurnDay)
	}
}

func TestGeneralCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	fid := seedFaction(t, st, "Wei", "")
	gid, err := st.InsertGeneral(ctx, &General{
		SessionID: "s1", FactionID: fid, CityID: 1, Name: "Cao Cao", Gold: 100,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	cache := NewGeneralCache(st)
	g, err := cache.Get(ctx, gid)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}

	err = st.RunInTx(ctx, func(tx *sqlx.Tx) error {
		g2 := *g
		g2.Gold = 999
		return SaveGeneralTx(tx, &g2)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Stale until invalidated.
	g, _ = cache.Get(ctx, gid)
	if g.Gold != 100 {
		t.Errorf("cached gold = %d, want stale 100", g.Gold)
	}
	cache.Invalidate(gid)
	g, _ = cache.Get(ctx, gid)
	if g.Gold != 999 {
		t.Errorf("post-invalidate gold = %d, want 999", g.Gold)
	}
}
