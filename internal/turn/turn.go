// Package turn resolves game-day boundaries: city yields into faction
// treasuries, event condition sweeps, and battle rounds. It runs only from
// the tick loop, never concurrently with itself.
package turn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parkjunho/samguk/internal/condition"
	"github.com/parkjunho/samguk/internal/metrics"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/rule"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
)

// Resolver advances one session's world state at day boundaries.
type Resolver struct {
	store   *store.Store
	mods    *modifier.Registry
	actions *rule.Registry
	fx      rule.Effector
	log     *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(st *store.Store, mods *modifier.Registry, actions *rule.Registry, fx rule.Effector, log *slog.Logger) *Resolver {
	return &Resolver{store: st, mods: mods, actions: actions, fx: fx, log: log}
}

// ResolveDay runs the full day-boundary pass: yields first, then events, so
// an event condition observes the day's income.
func (r *Resolver) ResolveDay(ctx context.Context, sess *session.Session, gameDay int) error {
	if err := r.applyYields(ctx, sess); err != nil {
		return fmt.Errorf("yields: %w", err)
	}
	if err := r.runEvents(ctx, sess, gameDay); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

// applyYields credits each faction's treasury with its cities' output. Yields
// route through the modifier pipeline under the faction's doctrine, so a
// mercantile faction earns more gold from the same commerce.
func (r *Resolver) applyYields(ctx context.Context, sess *session.Session) error {
	factions, err := r.store.FactionsBySession(ctx, sess.ID)
	if err != nil {
		return err
	}
	cities, err := r.store.CitiesBySession(ctx, sess.ID)
	if err != nil {
		return err
	}

	byFaction := make(map[int64][]*store.City)
	for i := range cities {
		byFaction[cities[i].FactionID] = append(byFaction[cities[i].FactionID], &cities[i])
	}

	for i := range factions {
		f := &factions[i]
		if f.Eliminated {
			continue
		}
		units, err := r.mods.Collect(f.Doctrine)
		if err != nil {
			r.log.Warn("unknown doctrine, yields unmodified", "faction", f.ID, "doctrine", f.Doctrine)
			units = nil
		}
		mctx := modifier.Context{FactionID: f.ID}

		var gold, rice int64
		for _, c := range byFaction[f.ID] {
			gold += int64(modifier.Resolve(modifier.KeyGoldYield, float64(c.Commerce)/10, units, mctx))
			rice += int64(modifier.Resolve(modifier.KeyRiceYield, float64(c.Agriculture)/10, units, mctx))
		}
		if gold == 0 && rice == 0 {
			continue
		}
		if err := r.store.AddFactionResources(ctx, f.ID, gold, rice); err != nil {
			return err
		}
	}
	return nil
}

// runEvents evaluates every enabled event definition against a fresh
// environment snapshot. One handler's condition error or action failure never
// stops the handlers after it.
func (r *Resolver) runEvents(ctx context.Context, sess *session.Session, gameDay int) error {
	handlers, err := rule.Build(sess.Events, r.actions)
	if err != nil {
		return err
	}
	if len(handlers) == 0 {
		return nil
	}

	env, err := r.Snapshot(ctx, sess, gameDay)
	if err != nil {
		return err
	}

	for _, h := range handlers {
		res := h.TryRun(ctx, env, r.actions, r.fx)
		if res.Err != nil {
			r.log.Error("event condition error", "event", h.ID, "error", res.Err)
			continue
		}
		if !res.Matched {
			continue
		}
		metrics.EventsFired.WithLabelValues(h.ID).Inc()
		r.log.Info("event fired", "event", h.ID, "session", sess.ID, "actions", len(res.Actions))
		for _, a := range res.Actions {
			status := "success"
			if !a.Success {
				status = "error"
				r.log.Warn("event action failed", "event", h.ID, "action", a.ActionID, "message", a.Message)
			}
			metrics.ActionsExecuted.WithLabelValues(a.Type, status).Inc()
		}
	}
	return nil
}

// Snapshot assembles the condition environment for a game day, precomputing
// the remaining-faction count so evaluation itself never queries.
func (r *Resolver) Snapshot(ctx context.Context, sess *session.Session, gameDay int) (condition.Env, error) {
	year, month, _ := sess.Date(gameDay)
	remaining, err := r.store.RemainingFactionCount(ctx, sess.ID)
	if err != nil {
		return condition.Env{}, err
	}
	return condition.Env{
		SessionID:         sess.ID,
		Year:              year,
		Month:             month,
		StartYear:         sess.StartYear,
		RemainingFactions: &remaining,
	}, nil
}
