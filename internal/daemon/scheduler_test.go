package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/exec"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/rule"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
	"github.com/parkjunho/samguk/internal/turn"
)

const schedulerYAML = `
version: "1"
sessions:
  - id: s1
    name: "Test"
    commands:
      - kind: move
        enabled: true
        duration_per_distance: 1.0
`

type schedFixture struct {
	store     *store.Store
	queue     *queue.Queue
	exec      *exec.Executor
	scheduler *Scheduler
	wei       int64
	cities    map[string]int64
	general   int64
}

func newSchedFixture(t *testing.T, dayLength time.Duration) *schedFixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sessPath := filepath.Join(dir, "sessions.yaml")
	if err := os.WriteFile(sessPath, []byte(schedulerYAML), 0o644); err != nil {
		t.Fatalf("write sessions: %v", err)
	}
	loader, err := session.NewLoader(sessPath)
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}

	q := queue.New(st)
	mods := modifier.Builtin()
	ex := exec.New(st, store.NewGeneralCache(st), session.NewCache(loader), mods, dayLength)

	log := slog.Default()
	actions := rule.NewRegistry()
	rule.RegisterBuiltins(actions)
	resolver := turn.NewResolver(st, mods, actions, turn.NewEffects(st, q, log), log)

	f := &schedFixture{store: st, queue: q, exec: ex, cities: map[string]int64{}}
	f.scheduler = NewScheduler(st, q, ex, loader, resolver, SchedulerConf{
		Interval:  time.Hour, // ticks driven manually in tests
		DayLength: dayLength,
	}, log)

	ctx := context.Background()
	f.wei, err = st.InsertFaction(ctx, &store.Faction{SessionID: "s1", Name: "Wei"})
	if err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	for _, c := range []store.City{
		{SessionID: "s1", FactionID: f.wei, Name: "Luoyang", X: 0, Y: 0, Commerce: 100, Agriculture: 200},
		{SessionID: "s1", FactionID: f.wei, Name: "Xuchang", X: 0, Y: 2},
	} {
		id, err := st.InsertCity(ctx, &c)
		if err != nil {
			t.Fatalf("seed city: %v", err)
		}
		f.cities[c.Name] = id
	}
	f.general, err = st.InsertGeneral(ctx, &store.General{
		SessionID: "s1", FactionID: f.wei, CityID: f.cities["Luoyang"], Name: "Cao Cao",
	})
	if err != nil {
		t.Fatalf("seed general: %v", err)
	}
	return f
}

func TestTick_ResolvesElapsedDays(t *testing.T) {
	f := newSchedFixture(t, time.Hour)
	ctx := context.Background()

	// Anchor the session three game days in the past.
	if _, err := f.store.EnsureSessionMeta(ctx, "s1", time.Now().Add(-3*time.Hour)); err != nil {
		t.Fatalf("ensure meta: %v", err)
	}

	f.scheduler.Tick(ctx)

	meta, err := f.store.EnsureSessionMeta(ctx, "s1", time.Now())
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if meta.LastTurnDay != 3 {
		t.Errorf("last_turn_day = %d, want 3", meta.LastTurnDay)
	}

	// Four day boundaries (0..3) each paid 100/10 gold and 200/10 rice.
	fac, _ := f.store.FactionByID(ctx, f.wei)
	if fac.Gold != 40 || fac.Rice != 80 {
		t.Errorf("treasury = %d/%d, want 40/80", fac.Gold, fac.Rice)
	}

	// A second tick in the same game day does nothing.
	f.scheduler.Tick(ctx)
	fac, _ = f.store.FactionByID(ctx, f.wei)
	if fac.Gold != 40 {
		t.Errorf("same-day retick paid yields again: gold = %d", fac.Gold)
	}
}

func TestTick_SkipsWhileRunning(t *testing.T) {
	f := newSchedFixture(t, time.Hour)
	ctx := context.Background()

	f.scheduler.ticking.Store(true)
	f.scheduler.Tick(ctx) // must return without touching anything
	f.scheduler.ticking.Store(false)

	if _, err := f.store.EnsureSessionMeta(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("load meta: %v", err)
	}
	meta, _ := f.store.EnsureSessionMeta(ctx, "s1", time.Now())
	if meta.LastTurnDay != -1 {
		t.Errorf("skipped tick resolved days: last_turn_day = %d", meta.LastTurnDay)
	}
}

func TestTick_SweepsDeferredCompletions(t *testing.T) {
	// 10ms game days so the two-day march is already due by tick time.
	f := newSchedFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	cmd := command.New("s1", f.general, "move", command.Args{"city_id": f.cities["Xuchang"]})
	cmd.EnqueuedAt = time.Now().Add(-time.Minute)
	if err := f.queue.Enqueue(ctx, cmd); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := f.queue.Poll(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("poll = %d, err %v", len(claimed), err)
	}
	res, err := f.exec.Execute(ctx, claimed[0])
	if err != nil || !res.Deferred {
		t.Fatalf("execute = %+v, err %v", res, err)
	}

	time.Sleep(50 * time.Millisecond)
	f.scheduler.Tick(ctx)

	got, _ := f.queue.ByID(ctx, cmd.ID)
	if got.Status != command.StatusCompleted {
		t.Errorf("deferred command status = %s, want completed after sweep", got.Status)
	}
	g, _ := f.store.GeneralByID(ctx, f.general)
	if g.CityID != f.cities["Xuchang"] {
		t.Errorf("general city = %d, want Xuchang", g.CityID)
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	f := newSchedFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.scheduler.Start(ctx)
	f.scheduler.Start(ctx) // no-op
	f.scheduler.Stop()
	f.scheduler.Stop() // no-op
}
