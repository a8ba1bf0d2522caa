package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/session"
)

// effectMapHandler executes command kinds that have no native handler, driven
// entirely by the session's declarative effect map. Each effect resolves its
// base amount through the modifier pipeline and applies the result as a delta
// to one stat. Negative deltas that overdraw a resource reject the whole
// command before any effect is applied.
type effectMapHandler struct {
	kind      string
	dayLength time.Duration
}

func (h *effectMapHandler) Kind() string { return h.kind }

func (h *effectMapHandler) Validate(command.Args) error { return nil }

func (h *effectMapHandler) Execute(ctx context.Context, st *State) error {
	if st.Conf.DurationDays > 0 {
		st.Defer(float64(st.Conf.DurationDays), h.dayLength)
		st.Note = fmt.Sprintf("%s underway (%d days)", h.kind, st.Conf.DurationDays)
		return nil
	}
	return h.apply(st)
}

func (h *effectMapHandler) Complete(_ context.Context, st *State) error {
	return h.apply(st)
}

func (h *effectMapHandler) apply(st *State) error {
	deltas := make([]int64, len(st.Conf.Effects))
	for i, eff := range st.Conf.Effects {
		resolved := st.Resolve(modifier.Key{Category: eff.Category, Subcategory: eff.Subcategory}, eff.Base)
		deltas[i] = int64(resolved)
		if deltas[i] < 0 {
			if err := h.checkAfford(st, eff, -deltas[i]); err != nil {
				return err
			}
		}
	}
	for i, eff := range st.Conf.Effects {
		if err := h.applyDelta(st, eff, deltas[i]); err != nil {
			return err
		}
	}
	st.Note = fmt.Sprintf("%s applied %d effects", h.kind, len(st.Conf.Effects))
	return nil
}

func (h *effectMapHandler) checkAfford(st *State, eff session.EffectConf, need int64) error {
	have, err := h.current(st, eff)
	if err != nil {
		return err
	}
	if have < need {
		return command.Resourcef("%s: %s %s has %d, needs %d", h.kind, eff.Entity, eff.Stat, have, need)
	}
	return nil
}

func (h *effectMapHandler) current(st *State, eff session.EffectConf) (int64, error) {
	switch eff.Entity {
	case "general":
		switch eff.Stat {
		case "gold":
			return st.Actor.Gold, nil
		case "rice":
			return st.Actor.Rice, nil
		case "troops":
			return int64(st.Actor.Troops), nil
		case "training":
			return int64(st.Actor.Training), nil
		}
	case "city":
		switch eff.Stat {
		case "population":
			return int64(st.City.Population), nil
		case "commerce":
			return int64(st.City.Commerce), nil
		case "agriculture":
			return int64(st.City.Agriculture), nil
		}
	case "faction":
		switch eff.Stat {
		case "gold":
			return st.Faction.Gold, nil
		case "rice":
			return st.Faction.Rice, nil
		}
	}
	return 0, command.Validationf("%s: effect map names unknown %s.%s", h.kind, eff.Entity, eff.Stat)
}

func (h *effectMapHandler) applyDelta(st *State, eff session.EffectConf, delta int64) error {
	switch eff.Entity {
	case "general":
		switch eff.Stat {
		case "gold":
			st.Actor.Gold += delta
			return nil
		case "rice":
			st.Actor.Rice += delta
			return nil
		case "troops":
			st.Actor.Troops += int(delta)
			return nil
		case "training":
			st.Actor.Training += int(delta)
			if st.Actor.Training > 100 {
				st.Actor.Training = 100
			}
			return nil
		}
	case "city":
		switch eff.Stat {
		case "population":
			st.City.Population += int(delta)
			return nil
		case "commerce":
			st.City.Commerce += int(delta)
			return nil
		case "agriculture":
			st.City.Agriculture += int(delta)
			return nil
		}
	case "faction":
		switch eff.Stat {
		case "gold":
			st.Faction.Gold += delta
			return nil
		case "rice":
			st.Faction.Rice += delta
			return nil
		}
	}
	return command.Validationf("%s: effect map names unknown %s.%s", h.kind, eff.Entity, eff.Stat)
}
