package turn

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/condition"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/rule"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
)

func intp(n int) *int { return &n }

func newResolver(t *testing.T) (*store.Store, *queue.Queue, *Resolver) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	q := queue.New(st)
	actions := rule.NewRegistry()
	rule.RegisterBuiltins(actions)
	log := slog.Default()
	fx := NewEffects(st, q, log)
	return st, q, NewResolver(st, modifier.Builtin(), actions, fx, log)
}

func testSession() *session.Session {
	return &session.Session{ID: "s1", StartYear: 180, DaysPerMonth: 30, GameSpeed: 1}
}

func TestResolveDay_YieldsIntoTreasury(t *testing.T) {
	st, _, r := newResolver(t)
	ctx := context.Background()

	wei, err := st.InsertFaction(ctx, &store.Faction{
		SessionID: "s1", Name: "Wei", Doctrine: "doctrine_mercantile", Gold: 0, Rice: 0,
	})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	shu, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Shu"})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	for _, c := range []store.City{
		{SessionID: "s1", FactionID: wei, Name: "Luoyang", Commerce: 400, Agriculture: 300},
		{SessionID: "s1", FactionID: wei, Name: "Xuchang", Commerce: 200, Agriculture: 100},
		{SessionID: "s1", FactionID: shu, Name: "Chengdu", Commerce: 100, Agriculture: 500},
	} {
		if _, err := st.InsertCity(ctx, &c); err != nil {
			t.Fatalf("seed city: %v", err)
		}
	}

	if err := r.ResolveDay(ctx, testSession(), 0); err != nil {
		t.Fatalf("resolve day: %v", err)
	}

	// Wei: (400+200)/10 gold through the x1.1 mercantile doctrine = 66,
	// (300+100)/10 rice unmodified = 40.
	f, _ := st.FactionByID(ctx, wei)
	if f.Gold != 66 || f.Rice != 40 {
		t.Errorf("wei treasury = %d gold %d rice, want 66/40", f.Gold, f.Rice)
	}
	// Shu has no doctrine: 10 gold, 50 rice.
	f, _ = st.FactionByID(ctx, shu)
	if f.Gold != 10 || f.Rice != 50 {
		t.Errorf("shu treasury = %d gold %d rice, want 10/50", f.Gold, f.Rice)
	}
}

func TestResolveDay_EventGrantFires(t *testing.T) {
	st, _, r := newResolver(t)
	ctx := context.Background()

	wei, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Wei"})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}

	sess := testSession()
	sess.Events = []session.EventDef{{
		ID: "new_year", Enabled: true,
		Condition: condition.Def{Kind: "date", Cmp: "==", Month: intp(1)},
		Actions: []session.ActionDef{{
			ID: "gift", Type: "grant_resource",
			Params: map[string]any{"gold": 500, "rice": 250},
		}},
	}}

	// Day 0 is month 1: the grant fires.
	if err := r.ResolveDay(ctx, sess, 0); err != nil {
		t.Fatalf("resolve day: %v", err)
	}
	f, _ := st.FactionByID(ctx, wei)
	if f.Gold != 500 || f.Rice != 250 {
		t.Errorf("treasury after grant = %d/%d, want 500/250", f.Gold, f.Rice)
	}

	// Day 30 is month 2: no grant.
	if err := r.ResolveDay(ctx, sess, 30); err != nil {
		t.Fatalf("resolve day: %v", err)
	}
	f, _ = st.FactionByID(ctx, wei)
	if f.Gold != 500 {
		t.Errorf("grant fired off-month: gold = %d", f.Gold)
	}
}

func TestResolveDay_SpawnCommandEnqueues(t *testing.T) {
	st, q, r := newResolver(t)
	ctx := context.Background()

	if _, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Wei"}); err != nil {
		t.Fatalf("seed faction: %v", err)
	}

	sess := testSession()
	sess.Events = []session.EventDef{{
		ID: "drill_order", Enabled: true,
		Condition: condition.Def{Kind: "date", Cmp: "==", Month: intp(1)},
		Actions: []session.ActionDef{{
			ID: "order", Type: "spawn_command",
			Params: map[string]any{"kind": "train", "actor_id": 1},
		}},
	}}
	if err := r.ResolveDay(ctx, sess, 0); err != nil {
		t.Fatalf("resolve day: %v", err)
	}

	cmds, err := q.Poll(ctx, 10)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Kind != "train" || cmds[0].ActorID != 1 {
		t.Fatalf("spawned commands = %+v, want one train for actor 1", cmds)
	}
}

func TestSnapshot_PrecomputesFactionCount(t *testing.T) {
	st, _, r := newResolver(t)
	ctx := context.Background()
	for _, name := range []string{"Wei", "Shu", "Wu"} {
		if _, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: name}); err != nil {
			t.Fatalf("seed faction: %v", err)
		}
	}

	env, err := r.Snapshot(ctx, testSession(), 360+30)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if env.Year != 181 || env.Month != 2 {
		t.Errorf("snapshot date = %d/%d, want 181/2", env.Year, env.Month)
	}
	if env.RemainingFactions == nil || *env.RemainingFactions != 3 {
		t.Errorf("remaining factions = %v, want 3", env.RemainingFactions)
	}
}

func battleFixture(t *testing.T, st *store.Store, attackerTroops, militia int) (attackerFaction, defenderFaction, cityID, generalID int64) {
	t.Helper()
	ctx := context.Background()

	wei, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Wei"})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	shu, err := st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Shu"})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	city, err := st.InsertCity(ctx, &store.City{
		SessionID: "s1", FactionID: shu, Name: "Chengdu", Population: militia * 100,
	})
	if err != nil {
		t.Fatalf("seed city: %v", err)
	}
	home, err := st.InsertCity(ctx, &store.City{SessionID: "s1", FactionID: wei, Name: "Luoyang"})
	if err != nil {
		t.Fatalf("seed city: %v", err)
	}
	gen, err := st.InsertGeneral(ctx, &store.General{
		SessionID: "s1", FactionID: wei, CityID: home, Name: "Cao Cao",
		Leadership: 95, Training: 60,
	})
	if err != nil {
		t.Fatalf("seed general: %v", err)
	}
	return wei, shu, city, gen
}

func insertBattle(t *testing.T, st *store.Store, b *store.Battle) {
	t.Helper()
	err := st.RunInTx(context.Background(), func(tx *sqlx.Tx) error {
		return store.InsertBattleTx(tx, b)
	})
	if err != nil {
		t.Fatalf("insert battle: %v", err)
	}
}

func TestAdvanceBattles_ConquestEliminatesFaction(t *testing.T) {
	st, _, r := newResolver(t)
	ctx := context.Background()
	wei, shu, city, gen := battleFixture(t, st, 5000, 400)

	insertBattle(t, st, &store.Battle{
		SessionID: "s1", CityID: city,
		AttackerGeneralID: gen, AttackerFactionID: wei, DefenderFactionID: shu,
		AttackerTroops: 5000, DefenderTroops: 400, Status: store.BattleActive,
	})

	if err := r.AdvanceBattles(ctx, "s1"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// 5000 drilled troops against 400 militia settle in one round.
	battles, _ := st.ActiveBattles(ctx, "s1")
	if len(battles) != 0 {
		t.Fatalf("battle still active after round: %+v", battles)
	}

	c, _ := st.CityByID(ctx, city)
	if c.FactionID != wei {
		t.Errorf("city faction = %d, want conqueror %d", c.FactionID, wei)
	}
	g, _ := st.GeneralByID(ctx, gen)
	if g.CityID != city {
		t.Errorf("general city = %d, want conquered %d", g.CityID, city)
	}
	if g.Troops <= 0 {
		t.Errorf("survivors = %d, want > 0", g.Troops)
	}

	// Chengdu was Shu's last city.
	f, _ := st.FactionByID(ctx, shu)
	if !f.Eliminated {
		t.Errorf("defender faction should be eliminated")
	}
	n, _ := st.RemainingFactionCount(ctx, "s1")
	if n != 1 {
		t.Errorf("remaining factions = %d, want 1", n)
	}
}

func TestAdvanceBattles_RepelledSiege(t *testing.T) {
	st, _, r := newResolver(t)
	ctx := context.Background()
	wei, shu, city, gen := battleFixture(t, st, 10, 400)

	insertBattle(t, st, &store.Battle{
		SessionID: "s1", CityID: city,
		AttackerGeneralID: gen, AttackerFactionID: wei, DefenderFactionID: shu,
		AttackerTroops: 10, DefenderTroops: 400, Status: store.BattleActive,
	})

	if err := r.AdvanceBattles(ctx, "s1"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	battles, _ := st.ActiveBattles(ctx, "s1")
	if len(battles) != 0 {
		t.Fatalf("battle still active: %+v", battles)
	}
	c, _ := st.CityByID(ctx, city)
	if c.FactionID != shu {
		t.Errorf("repelled siege transferred the city")
	}
	f, _ := st.FactionByID(ctx, shu)
	if f.Eliminated {
		t.Errorf("defender wrongly eliminated")
	}
}
