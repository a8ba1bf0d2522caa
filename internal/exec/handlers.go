package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/store"
)

// Handler is a native computed effect for one command kind. Execute runs at
// dequeue time; Complete runs at the completion deadline for deferred kinds
// (a no-op for immediate ones).
type Handler interface {
	Kind() string
	Validate(args command.Args) error
	Execute(ctx context.Context, st *State) error
	Complete(ctx context.Context, st *State) error
}

// nopComplete is embedded by immediate handlers.
type nopComplete struct{}

func (nopComplete) Complete(context.Context, *State) error { return nil }

func registerBuiltins(e *Executor) {
	e.RegisterHandler(&trainHandler{})
	e.RegisterHandler(&recruitHandler{})
	e.RegisterHandler(&developHandler{})
	e.RegisterHandler(&restHandler{})
	e.RegisterHandler(&moveHandler{dayLength: e.dayLength})
	e.RegisterHandler(&attackHandler{})
}

// ---------------------------------------------------------------------------
// train — drill the crew: costs gold, raises training.
// ---------------------------------------------------------------------------

type trainHandler struct{ nopComplete }

func (*trainHandler) Kind() string { return "train" }

func (*trainHandler) Validate(args command.Args) error {
	if v, ok := args.Float("base_cost"); ok && v <= 0 {
		return fmt.Errorf("base_cost must be positive")
	}
	return nil
}

func (*trainHandler) Execute(_ context.Context, st *State) error {
	base := 100.0
	if v, ok := st.Cmd.Args.Float("base_cost"); ok {
		base = v
	}
	cost := st.Resolve(modifier.KeyTrainingCost, base)
	if float64(st.Actor.Gold) < cost {
		return command.Resourcef("general %d has %d gold, training costs %.0f", st.Actor.ID, st.Actor.Gold, cost)
	}
	gain := st.Resolve(modifier.KeyTrainingGain, 10)

	st.Actor.Gold -= int64(cost)
	st.Actor.Training += int(gain)
	if st.Actor.Training > 100 {
		st.Actor.Training = 100
	}
	st.Note = fmt.Sprintf("trained to %d (cost %.0f)", st.Actor.Training, cost)
	return nil
}

// ---------------------------------------------------------------------------
// recruit — raise troops: costs gold and rice, bounded by city population.
// ---------------------------------------------------------------------------

type recruitHandler struct{ nopComplete }

func (*recruitHandler) Kind() string { return "recruit" }

func (*recruitHandler) Validate(args command.Args) error {
	if n, ok := args.Int("count"); ok && n <= 0 {
		return fmt.Errorf("count must be positive")
	}
	return nil
}

func (*recruitHandler) Execute(_ context.Context, st *State) error {
	count := int64(500)
	if n, ok := st.Cmd.Args.Int("count"); ok {
		count = n
	}
	if int(count) > st.City.Population/10 {
		return command.Resourcef("city %s cannot spare %d recruits", st.City.Name, count)
	}
	cost := st.Resolve(modifier.KeyRecruitCost, float64(count)/5)
	if float64(st.Actor.Gold) < cost || float64(st.Actor.Rice) < cost {
		return command.Resourcef("recruiting %d costs %.0f gold and rice", count, cost)
	}

	st.Actor.Gold -= int64(cost)
	st.Actor.Rice -= int64(cost)
	st.Actor.Troops += int(count)
	st.City.Population -= int(count)
	// Fresh recruits dilute drill.
	if st.Actor.Troops > 0 {
		st.Actor.Training = st.Actor.Training * (st.Actor.Troops - int(count)) / st.Actor.Troops
	}
	st.Note = fmt.Sprintf("recruited %d troops (cost %.0f)", count, cost)
	return nil
}

// ---------------------------------------------------------------------------
// develop — invest in city commerce or agriculture.
// ---------------------------------------------------------------------------

type developHandler struct{ nopComplete }

func (*developHandler) Kind() string { return "develop" }

func (*developHandler) Validate(args command.Args) error {
	sector, ok := args.String("sector")
	if !ok {
		return fmt.Errorf("sector is required")
	}
	if sector != "commerce" && sector != "agriculture" {
		return fmt.Errorf("sector must be commerce or agriculture, got %q", sector)
	}
	return nil
}

func (*developHandler) Execute(_ context.Context, st *State) error {
	sector, _ := st.Cmd.Args.String("sector")
	cost := st.Resolve(modifier.KeyDevelopCost, 50)
	if float64(st.Actor.Gold) < cost {
		return command.Resourcef("development costs %.0f gold", cost)
	}
	gain := st.Resolve(modifier.KeyDevelopGain, float64(st.Actor.Intellect)/10)

	st.Actor.Gold -= int64(cost)
	if sector == "commerce" {
		st.City.Commerce += int(gain)
	} else {
		st.City.Agriculture += int(gain)
	}
	st.Note = fmt.Sprintf("developed %s of %s by %.0f", sector, st.City.Name, gain)
	return nil
}

// ---------------------------------------------------------------------------
// rest — recover; no cost, modest training decay.
// ---------------------------------------------------------------------------

type restHandler struct{ nopComplete }

func (*restHandler) Kind() string { return "rest" }

func (*restHandler) Validate(command.Args) error { return nil }

func (*restHandler) Execute(_ context.Context, st *State) error {
	if st.Actor.Training > 0 {
		st.Actor.Training--
	}
	st.Note = "rested"
	return nil
}

// ---------------------------------------------------------------------------
// move — relocate to another city. Completion is distance-based: the command
// stays Executing until the deadline, and the relocation applies then.
// ---------------------------------------------------------------------------

type moveHandler struct {
	dayLength time.Duration
}

func (*moveHandler) Kind() string { return "move" }

func (*moveHandler) Validate(args command.Args) error {
	if _, ok := args.Int("city_id"); !ok {
		return fmt.Errorf("city_id is required")
	}
	return nil
}

func (h *moveHandler) Execute(ctx context.Context, st *State) error {
	dest, err := h.destination(st)
	if err != nil {
		return err
	}
	if dest.ID == st.City.ID {
		return command.Validationf("already in %s", dest.Name)
	}

	distance := st.City.Distance(dest)
	days := float64(st.Conf.DurationDays) + st.Conf.DurationPerDistance*float64(distance)
	days = st.Resolve(modifier.KeyMoveDuration, days)
	if days < 0 {
		days = 0
	}
	if days == 0 {
		return h.Complete(ctx, st)
	}
	st.Defer(days, h.dayLength)
	st.Note = fmt.Sprintf("marching to %s (%.1f days)", dest.Name, days)
	return nil
}

func (h *moveHandler) Complete(_ context.Context, st *State) error {
	dest, err := h.destination(st)
	if err != nil {
		return err
	}
	st.Actor.CityID = dest.ID
	st.Note = fmt.Sprintf("arrived at %s", dest.Name)
	return nil
}

func (h *moveHandler) destination(st *State) (*store.City, error) {
	cityID, _ := st.Cmd.Args.Int("city_id")
	if st.TargetCity == nil {
		dest, err := loadCity(st, cityID)
		if err != nil {
			return nil, err
		}
		st.TargetCity = dest
	}
	return st.TargetCity, nil
}

// ---------------------------------------------------------------------------
// attack — open a battle against a city held by another faction. Rounds are
// resolved by the tick loop's battle handler, not here.
// ---------------------------------------------------------------------------

type attackHandler struct{ nopComplete }

func (*attackHandler) Kind() string { return "attack" }

func (*attackHandler) Validate(args command.Args) error {
	if _, ok := args.Int("city_id"); !ok {
		return fmt.Errorf("city_id is required")
	}
	return nil
}

func (*attackHandler) Execute(_ context.Context, st *State) error {
	if st.Actor.Troops <= 0 {
		return command.Resourcef("general %d has no troops", st.Actor.ID)
	}
	cityID, _ := st.Cmd.Args.Int("city_id")
	target, err := loadCity(st, cityID)
	if err != nil {
		return err
	}
	if target.FactionID == st.Actor.FactionID {
		return command.Validationf("cannot attack own city %s", target.Name)
	}
	st.TargetCity = target

	battle := &store.Battle{
		SessionID:         st.Cmd.SessionID,
		CityID:            target.ID,
		AttackerGeneralID: st.Actor.ID,
		AttackerFactionID: st.Actor.FactionID,
		DefenderFactionID: target.FactionID,
		AttackerTroops:    st.Actor.Troops,
		Status:            store.BattleActive,
	}
	if d := st.defender(); d != nil {
		battle.DefenderGeneralID = &d.ID
		battle.DefenderTroops = d.Troops
	} else {
		// Militia garrison.
		battle.DefenderTroops = target.Population / 100
	}

	// Committed troops march out with the attacker.
	st.Actor.Troops = 0
	st.NewBattle = battle
	st.Note = fmt.Sprintf("besieging %s with %d troops", target.Name, battle.AttackerTroops)
	return nil
}
