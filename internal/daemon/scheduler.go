package daemon

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/exec"
	"github.com/parkjunho/samguk/internal/metrics"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
	"github.com/parkjunho/samguk/internal/turn"
)

// SchedulerConf tunes the tick loop.
type SchedulerConf struct {
	// Interval between ticks.
	Interval time.Duration
	// DayLength is the wall duration of one game day at speed 1.0.
	DayLength time.Duration
	// MaxCatchUpDays caps how many missed day boundaries one tick resolves
	// after downtime. Zero means no cap.
	MaxCatchUpDays int
}

// Scheduler advances game time for every configured session: it sweeps
// deferred completions, resolves day boundaries, and advances battles. Ticks
// never overlap; a tick that outlives the interval causes later ticks to be
// skipped, not queued.
type Scheduler struct {
	store    *store.Store
	queue    *queue.Queue
	exec     *exec.Executor
	loader   *session.Loader
	resolver *turn.Resolver
	conf     SchedulerConf
	log      *slog.Logger

	ticking atomic.Bool
	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a Scheduler. Zero conf fields get working defaults.
func NewScheduler(st *store.Store, q *queue.Queue, ex *exec.Executor, loader *session.Loader, resolver *turn.Resolver, conf SchedulerConf, log *slog.Logger) *Scheduler {
	if conf.Interval <= 0 {
		conf.Interval = time.Second
	}
	if conf.DayLength <= 0 {
		conf.DayLength = time.Minute
	}
	return &Scheduler{
		store:    st,
		queue:    q,
		exec:     ex,
		loader:   loader,
		resolver: resolver,
		conf:     conf,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.conf.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight tick to finish. Calling
// Stop twice, or before Start, is a no-op.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stop)
	<-s.done
}

// Tick runs one scheduler pass. If the previous pass is still running the
// call returns immediately.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		return
	}
	defer s.ticking.Store(false)

	start := time.Now()
	file := s.loader.File()
	for i := range file.Sessions {
		sess := &file.Sessions[i]
		if err := s.advanceSession(ctx, sess, start); err != nil {
			s.log.Error("session tick failed", "session", sess.ID, "error", err)
		}
	}
	metrics.TickDuration.Observe(float64(time.Since(start).Milliseconds()))
}

func (s *Scheduler) advanceSession(ctx context.Context, sess *session.Session, now time.Time) error {
	meta, err := s.store.EnsureSessionMeta(ctx, sess.ID, now)
	if err != nil {
		return err
	}

	results, err := s.exec.CompleteDue(ctx, s.queue, sess.ID, now)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Status == command.StatusCompleted {
			metrics.DeferredCompleted.Inc()
		}
		s.log.Info("deferred command finalized", "command", res.CommandID,
			"status", res.Status, "message", res.Message)
	}

	elapsed := now.Sub(time.UnixMilli(meta.StartedAtMS))
	gameDay := sess.GameDay(elapsed, s.conf.DayLength)
	if gameDay <= meta.LastTurnDay {
		return nil
	}

	from := meta.LastTurnDay + 1
	if s.conf.MaxCatchUpDays > 0 && gameDay-from+1 > s.conf.MaxCatchUpDays {
		s.log.Warn("capping day catch-up", "session", sess.ID,
			"missed", gameDay-from+1, "cap", s.conf.MaxCatchUpDays)
		from = gameDay - s.conf.MaxCatchUpDays + 1
	}
	for day := from; day <= gameDay; day++ {
		if err := s.resolver.ResolveDay(ctx, sess, day); err != nil {
			return err
		}
		if err := s.resolver.AdvanceBattles(ctx, sess.ID); err != nil {
			return err
		}
		s.log.Info("day resolved", "session", sess.ID, "date", sess.DateString(day))
	}
	return s.store.SetLastTurnDay(ctx, sess.ID, gameDay)
}
