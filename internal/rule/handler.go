// Package rule runs declarative game events: each handler pairs one
// condition tree with an ordered list of actions, built once per definition
// and evaluated many times against fresh environment snapshots.
package rule

import (
	"context"
	"fmt"

	"github.com/parkjunho/samguk/internal/condition"
	"github.com/parkjunho/samguk/internal/session"
)

// Handler is stateless once built; only the external world accumulates
// effects between invocations.
type Handler struct {
	ID      string
	Cond    condition.Node
	Actions []session.ActionDef
}

// Build compiles enabled event definitions. Malformed conditions or unknown
// action types fail here, not at tick time.
func Build(defs []session.EventDef, reg *Registry) ([]*Handler, error) {
	handlers := make([]*Handler, 0, len(defs))
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		node, err := condition.Build(def.Condition)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", def.ID, err)
		}
		for _, a := range def.Actions {
			exec, err := reg.Get(a.Type)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", def.ID, err)
			}
			if err := exec.Validate(a.Params); err != nil {
				return nil, fmt.Errorf("event %s action %s: %w", def.ID, a.ID, err)
			}
		}
		handlers = append(handlers, &Handler{ID: def.ID, Cond: node, Actions: def.Actions})
	}
	return handlers, nil
}

// ActionResult is the outcome of one action within a handler run.
type ActionResult struct {
	ActionID string
	Type     string
	Success  bool
	Message  string
}

// RunResult reports one handler invocation.
type RunResult struct {
	HandlerID string
	Matched   bool
	Trace     []string
	Err       error
	Actions   []ActionResult
}

// TryRun evaluates the condition and, only if it holds, runs all actions in
// declared order. Actions are independently retryable units: one action's
// failure does not roll back or stop the ones after it (best-effort
// sequential trigger). A condition evaluation error is reported on the
// result and never aborts other handlers in the same tick.
func (h *Handler) TryRun(ctx context.Context, env condition.Env, reg *Registry, fx Effector) RunResult {
	res := RunResult{HandlerID: h.ID}

	cond, err := condition.Evaluate(h.Cond, env)
	res.Trace = cond.Trace
	if err != nil {
		res.Err = fmt.Errorf("event %s: %w", h.ID, err)
		return res
	}
	if !cond.Value {
		return res
	}
	res.Matched = true

	for _, a := range h.Actions {
		res.Actions = append(res.Actions, runAction(ctx, a, env, reg, fx))
	}
	return res
}

func runAction(ctx context.Context, a session.ActionDef, env condition.Env, reg *Registry, fx Effector) ActionResult {
	exec, err := reg.Get(a.Type)
	if err != nil {
		return ActionResult{ActionID: a.ID, Type: a.Type, Success: false, Message: err.Error()}
	}
	res, err := exec.Execute(ctx, a.ID, a.Params, env, fx)
	if err != nil {
		if res == nil {
			return ActionResult{ActionID: a.ID, Type: a.Type, Success: false, Message: err.Error()}
		}
		return *res
	}
	return *res
}
