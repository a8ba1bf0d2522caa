// Package exec resolves dequeued commands to their actor, target and effect
// set, routes every numeric outcome through the modifier pipeline, and
// persists the result atomically.
package exec

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/session"
	"github.com/parkjunho/samguk/internal/store"
)

// State carries one command's working set through a handler: fresh snapshots
// of every touched entity, the actor's modifier contributors, and the
// outcome the executor persists. Everything loaded is written back in the
// same transaction; the daemon is the sole writer, so saving an untouched
// snapshot is harmless.
type State struct {
	Cmd     *command.Command
	Session *session.Session
	Conf    *session.CommandConf

	Actor   *store.General
	Faction *store.Faction
	City    *store.City // actor's current city

	Target     *store.General // for general-targeted kinds
	TargetCity *store.City    // for move/attack/develop targets

	// NewBattle is inserted when set (attack kind).
	NewBattle *store.Battle

	// CompletesAt defers completion; zero completes at execution time.
	CompletesAt time.Time

	// Note becomes the result message.
	Note string

	units  []modifier.Unit
	modctx modifier.Context
	now    time.Time
	tx     *sqlx.Tx
}

// loadCity pulls a city snapshot into the command's transaction.
func loadCity(st *State, id int64) (*store.City, error) {
	c, err := store.CityByIDTx(st.tx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, command.Validationf("city %d not found", id)
		}
		return nil, command.Transientf("load city %d: %v", id, err)
	}
	return c, nil
}

// defender picks the garrison commander of the target city: the stationed
// general of the owning faction with the highest leadership, nil when the
// city is ungarrisoned.
func (st *State) defender() *store.General {
	if st.TargetCity == nil {
		return nil
	}
	gs, err := store.GeneralsByCityTx(st.tx, st.TargetCity.ID)
	if err != nil {
		return nil
	}
	for i := range gs {
		if gs[i].FactionID == st.TargetCity.FactionID {
			return &gs[i]
		}
	}
	return nil
}

// Resolve runs a base value through the modifier pipeline for the given key.
// The contributor list is immutable for the duration of one command.
func (st *State) Resolve(key modifier.Key, base float64) float64 {
	return modifier.Resolve(key, base, st.units, st.modctx)
}

// Defer schedules completion after the given number of game days, converted
// to wall time by the session's speed and the daemon's day length.
func (st *State) Defer(gameDays float64, dayLength time.Duration) {
	speed := st.Session.GameSpeed
	if speed <= 0 {
		speed = 1
	}
	wall := time.Duration(gameDays * float64(dayLength) / speed)
	st.CompletesAt = st.now.Add(wall)
}

// checkInvariants rejects a write set that would persist a negative
// resource. By the time modifiers have been applied this is an invariant
// violation, not a user error.
func (st *State) checkInvariants() error {
	if st.Actor != nil && (st.Actor.Gold < 0 || st.Actor.Rice < 0 || st.Actor.Troops < 0 || st.Actor.Training < 0) {
		return command.Fatalf("general %d would go negative", st.Actor.ID)
	}
	if st.Target != nil && (st.Target.Gold < 0 || st.Target.Rice < 0 || st.Target.Troops < 0) {
		return command.Fatalf("general %d would go negative", st.Target.ID)
	}
	if st.Faction != nil && (st.Faction.Gold < 0 || st.Faction.Rice < 0) {
		return command.Fatalf("faction %d would go negative", st.Faction.ID)
	}
	for _, c := range []*store.City{st.City, st.TargetCity} {
		if c != nil && (c.Commerce < 0 || c.Agriculture < 0 || c.Population < 0) {
			return command.Fatalf("city %d would go negative", c.ID)
		}
	}
	return nil
}
