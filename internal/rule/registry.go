package rule

import (
	"context"
	"fmt"
	"sync"

	"github.com/parkjunho/samguk/internal/condition"
)

// Effector is the narrow surface actions use to touch the world. Implemented
// by the daemon wiring over the store and the queue; kept as an interface so
// handlers stay testable without a database.
type Effector interface {
	// Announce broadcasts a message to a session (log/notice board).
	Announce(ctx context.Context, sessionID, message string) error
	// GrantFactionResources applies a gold/rice delta to every remaining
	// faction of the session.
	GrantFactionResources(ctx context.Context, sessionID string, gold, rice int64) error
	// EnqueueCommand appends a system-issued command to the durable queue.
	EnqueueCommand(ctx context.Context, sessionID, kind string, actorID int64, args map[string]any) error
}

// Executor is the interface all event actions must satisfy.
type Executor interface {
	// Type returns the string key this executor is registered under.
	Type() string
	// Execute runs the action against the environment snapshot.
	Execute(ctx context.Context, actionID string, params map[string]any, env condition.Env, fx Effector) (*ActionResult, error)
	// Validate checks params at build time.
	Validate(params map[string]any) error
}

// Registry maps action type strings to their executors. Safe for concurrent
// reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor. Panics on duplicate type to surface
// misconfiguration early.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[e.Type()]; exists {
		panic(fmt.Sprintf("action registry: duplicate type %q", e.Type()))
	}
	r.executors[e.Type()] = e
}

// Get returns the executor for the given type.
func (r *Registry) Get(actionType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[actionType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for action type %q", actionType)
	}
	return e, nil
}
