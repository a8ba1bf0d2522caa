package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/modifier"
	"github.com/parkjunho/samguk/internal/store"
)

// AdvanceBattles resolves one round for every active battle of the session.
// Each battle advances in its own transaction so a bad record cannot stall
// the rest.
func (r *Resolver) AdvanceBattles(ctx context.Context, sessionID string) error {
	battles, err := r.store.ActiveBattles(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range battles {
		if err := r.advanceBattle(ctx, &battles[i]); err != nil {
			r.log.Error("battle round failed", "battle", battles[i].ID, "error", err)
		}
	}
	return nil
}

func (r *Resolver) advanceBattle(ctx context.Context, b *store.Battle) error {
	return r.store.RunInTx(ctx, func(tx *sqlx.Tx) error {
		attacker, err := store.GeneralByIDTx(tx, b.AttackerGeneralID)
		if err != nil {
			return fmt.Errorf("attacker %d: %w", b.AttackerGeneralID, err)
		}
		var defender *store.General
		if b.DefenderGeneralID != nil {
			defender, err = store.GeneralByIDTx(tx, *b.DefenderGeneralID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("defender %d: %w", *b.DefenderGeneralID, err)
			}
		}

		atk := r.power(modifier.KeyBattleAttack, b.AttackerTroops, attacker)
		def := r.power(modifier.KeyBattleDefense, b.DefenderTroops, defender)

		b.DefenderTroops -= casualties(atk)
		b.AttackerTroops -= casualties(def)
		b.Round++

		switch {
		case b.DefenderTroops <= 0:
			return r.concludeConquest(tx, b, attacker, defender)
		case b.AttackerTroops <= 0:
			return r.concludeRepelled(tx, b, attacker, defender)
		default:
			if defender != nil {
				defender.Troops = b.DefenderTroops
				if err := store.SaveGeneralTx(tx, defender); err != nil {
					return err
				}
			}
			return store.SaveBattleTx(tx, b)
		}
	})
}

// power converts a troop count into round strength: stat-weighted, then
// routed through the modifier pipeline under the general's doctrine, trait
// and items. A militia garrison has no general and fights unmodified.
func (r *Resolver) power(key modifier.Key, troops int, g *store.General) float64 {
	if troops <= 0 {
		return 0
	}
	if g == nil {
		return float64(troops) * 0.5
	}
	base := float64(troops) * float64(100+g.Leadership) / 200 * float64(50+g.Training) / 100

	units, err := r.mods.Collect(g.Personality)
	if err != nil {
		units = nil
	}
	if extra, err := r.mods.Collect(g.Items...); err == nil {
		units = append(units, extra...)
	}
	return modifier.Resolve(key, base, units, modifier.Context{
		ActorID:    g.ID,
		FactionID:  g.FactionID,
		Leadership: g.Leadership,
		Strength:   g.Strength,
		Intellect:  g.Intellect,
	})
}

// casualties turns round strength into troop losses. A fighting side always
// inflicts at least one loss so battles cannot stall forever.
func casualties(power float64) int {
	n := int(power / 10)
	if power > 0 && n < 1 {
		n = 1
	}
	return n
}

// concludeConquest hands the city to the attacker, marches the general in
// with the surviving troops, and eliminates the defender faction if it holds
// no more cities.
func (r *Resolver) concludeConquest(tx *sqlx.Tx, b *store.Battle, attacker, defender *store.General) error {
	b.DefenderTroops = 0
	b.Status = store.BattleDone

	city, err := store.CityByIDTx(tx, b.CityID)
	if err != nil {
		return err
	}
	city.FactionID = b.AttackerFactionID
	if err := store.SaveCityTx(tx, city); err != nil {
		return err
	}

	attacker.CityID = b.CityID
	attacker.Troops = b.AttackerTroops
	if err := store.SaveGeneralTx(tx, attacker); err != nil {
		return err
	}
	if defender != nil {
		defender.Troops = 0
		if err := store.SaveGeneralTx(tx, defender); err != nil {
			return err
		}
	}

	left, err := store.CityCountByFactionTx(tx, b.DefenderFactionID)
	if err != nil {
		return err
	}
	if left == 0 {
		f, err := store.FactionByIDTx(tx, b.DefenderFactionID)
		if err != nil {
			return err
		}
		f.Eliminated = true
		if err := store.SaveFactionTx(tx, f); err != nil {
			return err
		}
		r.log.Info("faction eliminated", "session", b.SessionID, "faction", f.ID, "name", f.Name)
	}

	r.log.Info("city conquered", "session", b.SessionID, "city", city.Name,
		"battle", b.ID, "rounds", b.Round, "survivors", b.AttackerTroops)
	return store.SaveBattleTx(tx, b)
}

// concludeRepelled ends the siege with the defender holding; the committed
// attacking troops are spent.
func (r *Resolver) concludeRepelled(tx *sqlx.Tx, b *store.Battle, attacker, defender *store.General) error {
	b.AttackerTroops = 0
	b.Status = store.BattleDone

	if defender != nil {
		defender.Troops = b.DefenderTroops
		if err := store.SaveGeneralTx(tx, defender); err != nil {
			return err
		}
	}
	attacker.Troops = 0
	if err := store.SaveGeneralTx(tx, attacker); err != nil {
		return err
	}

	r.log.Info("siege repelled", "session", b.SessionID, "battle", b.ID,
		"rounds", b.Round, "defenders_left", b.DefenderTroops)
	return store.SaveBattleTx(tx, b)
}
