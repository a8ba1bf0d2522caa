package turn

import (
	"context"
	"log/slog"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/store"
)

// Effects implements rule.Effector over the store and the queue, giving event
// actions their only path into the world.
type Effects struct {
	store *store.Store
	queue *queue.Queue
	log   *slog.Logger
}

// NewEffects wires the action surface.
func NewEffects(st *store.Store, q *queue.Queue, log *slog.Logger) *Effects {
	return &Effects{store: st, queue: q, log: log}
}

// Announce broadcasts a session-wide notice. The daemon has no player
// transport; the notice goes to the structured log where the API layer
// tails it.
func (e *Effects) Announce(_ context.Context, sessionID, message string) error {
	e.log.Info("announcement", "session", sessionID, "message", message)
	return nil
}

// GrantFactionResources credits every remaining faction of the session.
func (e *Effects) GrantFactionResources(ctx context.Context, sessionID string, gold, rice int64) error {
	return e.store.GrantFactionResources(ctx, sessionID, gold, rice)
}

// EnqueueCommand appends a system-issued command to the durable queue. It
// flows through the same pipeline as player commands: per-actor ordering,
// retries, idempotent execution.
func (e *Effects) EnqueueCommand(ctx context.Context, sessionID, kind string, actorID int64, args map[string]any) error {
	cmd := command.New(sessionID, actorID, kind, command.Args(args))
	return e.queue.Enqueue(ctx, cmd)
}
