package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parkjunho/samguk/internal/api"
	"github.com/parkjunho/samguk/internal/config"
	"github.com/parkjunho/samguk/internal/daemon"
	"github.com/parkjunho/samguk/internal/exec"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/rule"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
	"github.com/parkjunho/samguk/internal/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// ── Sessions ──────────────────────────────────────────────────────────────
	loader, err := session.NewLoader(cfg.SessionsPath)
	if err != nil {
		slog.Error("failed to load sessions", "err", err)
		os.Exit(1)
	}
	if err := session.Validate(loader.File()); err != nil {
		slog.Error("session validation failed", "err", err)
		os.Exit(1)
	}
	sessions := session.NewCache(loader)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	// The validator gates inside the loader: an invalid rewrite never replaces
	// the live config, so OnChange only ever sees files that passed.
	loader.SetValidator(session.Validate)
	loader.OnChange(func(newCfg *session.File) {
		slog.Info("sessions hot-reloaded", "count", len(newCfg.Sessions))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("sessions watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── Store and queue ───────────────────────────────────────────────────────
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	q := queue.New(st,
		queue.WithMaxAttempts(cfg.MaxAttempts),
		queue.WithBaseBackoff(cfg.BaseBackoff))

	// ── Registries ────────────────────────────────────────────────────────────
	mods := modifier.Builtin()
	actions := rule.NewRegistry()
	rule.RegisterBuiltins(actions)

	// ── Executor and loops ────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := store.NewGeneralCache(st)
	executor := exec.New(st, cache, sessions, mods, cfg.DayLength)
	fx := turn.NewEffects(st, q, logger)
	resolver := turn.NewResolver(st, mods, actions, fx, logger)

	consumer := daemon.NewConsumer(q, executor, daemon.ConsumerConf{
		Workers:      cfg.Workers,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxIdleWait:  cfg.MaxIdleWait,
	}, logger)
	go consumer.Run(ctx)

	scheduler := daemon.NewScheduler(st, q, executor, loader, resolver, daemon.SchedulerConf{
		Interval:       cfg.TickInterval,
		DayLength:      cfg.DayLength,
		MaxCatchUpDays: cfg.MaxCatchUpDays,
	}, logger)
	scheduler.Start(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(q, loader, sessions, cache)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("daemon starting", "addr", cfg.HTTPAddr, "db", cfg.DBPath,
			"sessions", len(loader.File().Sessions))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	scheduler.Stop()
	cancel() // stop the consumer pool
	slog.Info("goodbye")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
