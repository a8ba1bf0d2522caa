package rule

import (
	"context"
	"fmt"

	"github.com/parkjunho/samguk/internal/condition"
)

// RegisterBuiltins wires the stock event actions.
func RegisterBuiltins(reg *Registry) {
	reg.Register(&AnnounceAction{})
	reg.Register(&GrantResourceAction{})
	reg.Register(&SpawnCommandAction{})
}

// AnnounceAction posts a message to the session.
type AnnounceAction struct{}

func (a *AnnounceAction) Type() string { return "announce" }

func (a *AnnounceAction) Validate(params map[string]any) error {
	if msg, _ := params["message"].(string); msg == "" {
		return fmt.Errorf("announce: message is required")
	}
	return nil
}

func (a *AnnounceAction) Execute(ctx context.Context, actionID string, params map[string]any, env condition.Env, fx Effector) (*ActionResult, error) {
	msg, _ := params["message"].(string)
	if err := fx.Announce(ctx, env.SessionID, msg); err != nil {
		return &ActionResult{ActionID: actionID, Type: a.Type(), Success: false, Message: err.Error()}, err
	}
	return &ActionResult{ActionID: actionID, Type: a.Type(), Success: true, Message: msg}, nil
}

// GrantResourceAction applies a session-wide gold/rice grant, e.g. a harvest
// bonus every twelfth month.
type GrantResourceAction struct{}

func (a *GrantResourceAction) Type() string { return "grant_resource" }

func (a *GrantResourceAction) Validate(params map[string]any) error {
	_, hasGold := numParam(params, "gold")
	_, hasRice := numParam(params, "rice")
	if !hasGold && !hasRice {
		return fmt.Errorf("grant_resource: one of 'gold' or 'rice' is required")
	}
	return nil
}

func (a *GrantResourceAction) Execute(ctx context.Context, actionID string, params map[string]any, env condition.Env, fx Effector) (*ActionResult, error) {
	gold, _ := numParam(params, "gold")
	rice, _ := numParam(params, "rice")
	if err := fx.GrantFactionResources(ctx, env.SessionID, gold, rice); err != nil {
		return &ActionResult{ActionID: actionID, Type: a.Type(), Success: false, Message: err.Error()}, err
	}
	msg := fmt.Sprintf("granted gold %+d rice %+d to all factions", gold, rice)
	return &ActionResult{ActionID: actionID, Type: a.Type(), Success: true, Message: msg}, nil
}

// SpawnCommandAction enqueues a system command, feeding the trigger back
// into the normal execution path.
type SpawnCommandAction struct{}

func (a *SpawnCommandAction) Type() string { return "spawn_command" }

func (a *SpawnCommandAction) Validate(params map[string]any) error {
	if kind, _ := params["kind"].(string); kind == "" {
		return fmt.Errorf("spawn_command: kind is required")
	}
	if _, ok := numParam(params, "actor_id"); !ok {
		return fmt.Errorf("spawn_command: actor_id is required")
	}
	return nil
}

func (a *SpawnCommandAction) Execute(ctx context.Context, actionID string, params map[string]any, env condition.Env, fx Effector) (*ActionResult, error) {
	kind, _ := params["kind"].(string)
	actorID, _ := numParam(params, "actor_id")
	args, _ := params["args"].(map[string]any)
	if err := fx.EnqueueCommand(ctx, env.SessionID, kind, actorID, args); err != nil {
		return &ActionResult{ActionID: actionID, Type: a.Type(), Success: false, Message: err.Error()}, err
	}
	msg := fmt.Sprintf("enqueued %s for actor %d", kind, actorID)
	return &ActionResult{ActionID: actionID, Type: a.Type(), Success: true, Message: msg}, nil
}

// numParam reads a numeric param, accepting the float64 YAML/JSON decoding
// produces alongside native ints.
func numParam(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
