package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
)

// Result is the outcome of executing one command.
type Result struct {
	CommandID        string
	Status           command.Status
	AlreadyProcessed bool
	Deferred         bool
	Message          string
}

// Executor applies commands to the authoritative state. It is idempotent
// per command id: redelivering a command that already reached a terminal
// state is a no-op.
type Executor struct {
	store     *store.Store
	cache     *store.GeneralCache
	sessions  *session.Cache
	mods      *modifier.Registry
	handlers  map[string]Handler
	locks     *actorLocks
	dayLength time.Duration
	now       func() time.Time
}

// New creates an Executor with the built-in native handlers registered.
// dayLength is the wall duration of one game day at speed 1.0.
func New(st *store.Store, cache *store.GeneralCache, sessions *session.Cache, mods *modifier.Registry, dayLength time.Duration) *Executor {
	e := &Executor{
		store:     st,
		cache:     cache,
		sessions:  sessions,
		mods:      mods,
		handlers:  make(map[string]Handler),
		locks:     newActorLocks(),
		dayLength: dayLength,
		now:       time.Now,
	}
	registerBuiltins(e)
	return e
}

// RegisterHandler adds a native computed handler for a command kind.
func (e *Executor) RegisterHandler(h Handler) {
	if _, exists := e.handlers[h.Kind()]; exists {
		panic(fmt.Sprintf("exec: duplicate handler for kind %q", h.Kind()))
	}
	e.handlers[h.Kind()] = h
}

// Execute runs one dequeued command. Exactly one durable write set occurs on
// success; no write occurs on any error path.
func (e *Executor) Execute(ctx context.Context, cmd *command.Command) (*Result, error) {
	sess, err := e.sessions.Get(cmd.SessionID)
	if err != nil {
		return nil, command.Validationf("%v", err)
	}
	conf := sess.Command(cmd.Kind)
	if conf == nil || !conf.Enabled {
		return nil, command.Validationf("command kind %q is disabled for session %s", cmd.Kind, cmd.SessionID)
	}

	h, err := e.resolveHandler(cmd.Kind, conf)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(cmd.Args); err != nil {
		return nil, command.Validationf("%s: %v", cmd.Kind, err)
	}

	lockIDs := []int64{cmd.ActorID}
	if cmd.TargetID != nil {
		lockIDs = append(lockIDs, *cmd.TargetID)
	}
	unlock := e.locks.acquire(lockIDs...)
	defer unlock()

	res := &Result{CommandID: cmd.ID}
	err = e.store.RunInTx(ctx, func(tx *sqlx.Tx) error {
		status, err := queue.StatusTx(tx, cmd.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return command.Validationf("unknown command %s", cmd.ID)
			}
			return command.Transientf("load command %s: %v", cmd.ID, err)
		}
		if status.Terminal() {
			res.AlreadyProcessed = true
			res.Status = status
			return nil
		}

		st, err := e.loadState(tx, cmd, sess, conf)
		if err != nil {
			return err
		}
		if err := h.Execute(ctx, st); err != nil {
			return err
		}
		if err := st.checkInvariants(); err != nil {
			return err
		}
		if err := e.persist(tx, st); err != nil {
			return err
		}

		if !st.CompletesAt.IsZero() {
			if err := queue.MarkDeferredTx(tx, cmd.ID, st.CompletesAt); err != nil {
				return command.Transientf("defer %s: %v", cmd.ID, err)
			}
			res.Status = command.StatusExecuting
			res.Deferred = true
		} else {
			if err := queue.MarkCompletedTx(tx, cmd.ID); err != nil {
				return command.Transientf("complete %s: %v", cmd.ID, err)
			}
			res.Status = command.StatusCompleted
		}
		res.Message = st.Note
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(cmd)
	return res, nil
}

// CompleteDue finalizes deferred commands whose deadline has passed,
// applying their completion effects. Called from the tick loop.
func (e *Executor) CompleteDue(ctx context.Context, q *queue.Queue, sessionID string, now time.Time) ([]*Result, error) {
	due, err := q.Due(ctx, sessionID, now)
	if err != nil {
		return nil, err
	}
	var results []*Result
	for _, cmd := range due {
		res, err := e.complete(ctx, cmd)
		if err != nil {
			if command.Retryable(err) {
				continue // picked up by the next sweep
			}
			_ = q.Fail(ctx, cmd.ID, err)
			results = append(results, &Result{CommandID: cmd.ID, Status: command.StatusFailed, Message: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Executor) complete(ctx context.Context, cmd *command.Command) (*Result, error) {
	sess, err := e.sessions.Get(cmd.SessionID)
	if err != nil {
		return nil, command.Validationf("%v", err)
	}
	conf := sess.Command(cmd.Kind)
	if conf == nil {
		return nil, command.Validationf("command kind %q vanished from session %s", cmd.Kind, cmd.SessionID)
	}
	h, err := e.resolveHandler(cmd.Kind, conf)
	if err != nil {
		return nil, err
	}

	lockIDs := []int64{cmd.ActorID}
	if cmd.TargetID != nil {
		lockIDs = append(lockIDs, *cmd.TargetID)
	}
	unlock := e.locks.acquire(lockIDs...)
	defer unlock()

	res := &Result{CommandID: cmd.ID}
	err = e.store.RunInTx(ctx, func(tx *sqlx.Tx) error {
		status, err := queue.StatusTx(tx, cmd.ID)
		if err != nil {
			return command.Transientf("load command %s: %v", cmd.ID, err)
		}
		if status.Terminal() {
			res.AlreadyProcessed = true
			res.Status = status
			return nil
		}

		st, err := e.loadState(tx, cmd, sess, conf)
		if err != nil {
			return err
		}
		if err := h.Complete(ctx, st); err != nil {
			return err
		}
		if err := st.checkInvariants(); err != nil {
			return err
		}
		if err := e.persist(tx, st); err != nil {
			return err
		}
		if err := queue.MarkCompletedTx(tx, cmd.ID); err != nil {
			return command.Transientf("complete %s: %v", cmd.ID, err)
		}
		res.Status = command.StatusCompleted
		res.Message = st.Note
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(cmd)
	return res, nil
}

// loadState loads fresh snapshots for everything the command touches and
// assembles the actor's modifier contributors in declared precedence.
func (e *Executor) loadState(tx *sqlx.Tx, cmd *command.Command, sess *session.Session, conf *session.CommandConf) (*State, error) {
	actor, err := store.GeneralByIDTx(tx, cmd.ActorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, command.Resourcef("actor %d not found", cmd.ActorID)
		}
		return nil, command.Transientf("load actor %d: %v", cmd.ActorID, err)
	}
	faction, err := store.FactionByIDTx(tx, actor.FactionID)
	if err != nil {
		return nil, command.Transientf("load faction %d: %v", actor.FactionID, err)
	}
	city, err := store.CityByIDTx(tx, actor.CityID)
	if err != nil {
		return nil, command.Transientf("load city %d: %v", actor.CityID, err)
	}

	st := &State{
		Cmd:     cmd,
		Session: sess,
		Conf:    conf,
		Actor:   actor,
		Faction: faction,
		City:    city,
		now:     e.now(),
		tx:      tx,
		modctx: modifier.Context{
			ActorID:    actor.ID,
			FactionID:  actor.FactionID,
			Leadership: actor.Leadership,
			Strength:   actor.Strength,
			Intellect:  actor.Intellect,
		},
	}

	if cmd.TargetID != nil {
		target, err := store.GeneralByIDTx(tx, *cmd.TargetID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, command.Transientf("load target %d: %v", *cmd.TargetID, err)
		}
		st.Target = target // nil when the target id names a city instead
	}

	ids := append([]string{faction.Doctrine, actor.Personality}, actor.Items...)
	units, err := e.mods.Collect(ids...)
	if err != nil {
		return nil, command.Fatalf("actor %d: %v", actor.ID, err)
	}
	st.units = units
	return st, nil
}

func (e *Executor) persist(tx *sqlx.Tx, st *State) error {
	if err := store.SaveGeneralTx(tx, st.Actor); err != nil {
		return command.Transientf("save actor: %v", err)
	}
	if st.Target != nil {
		if err := store.SaveGeneralTx(tx, st.Target); err != nil {
			return command.Transientf("save target: %v", err)
		}
	}
	if err := store.SaveFactionTx(tx, st.Faction); err != nil {
		return command.Transientf("save faction: %v", err)
	}
	for _, c := range []*store.City{st.City, st.TargetCity} {
		if c == nil {
			continue
		}
		if err := store.SaveCityTx(tx, c); err != nil {
			return command.Transientf("save city %d: %v", c.ID, err)
		}
	}
	if st.NewBattle != nil {
		if err := store.InsertBattleTx(tx, st.NewBattle); err != nil {
			return command.Transientf("open battle: %v", err)
		}
	}
	return nil
}

func (e *Executor) invalidate(cmd *command.Command) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(cmd.ActorID)
	if cmd.TargetID != nil {
		e.cache.Invalidate(*cmd.TargetID)
	}
}

func (e *Executor) resolveHandler(kind string, conf *session.CommandConf) (Handler, error) {
	if h, ok := e.handlers[kind]; ok {
		return h, nil
	}
	if len(conf.Effects) > 0 {
		return &effectMapHandler{kind: kind, dayLength: e.dayLength}, nil
	}
	return nil, command.Validationf("no handler or effect map for kind %q", kind)
}
