package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// ---------------------------------------------------------------------------
// Generals
// ---------------------------------------------------------------------------

// GeneralByID loads a general snapshot.
func (s *Store) GeneralByID(ctx context.Context, id int64) (*General, error) {
	var g General
	err := s.db.GetContext(ctx, &g, `SELECT * FROM generals WHERE id = ?`, id)
	if err != nil {
		return nil, wrapGet(err)
	}
	return &g, nil
}

// GeneralByIDTx loads a general inside a transaction. Snapshots are loaded
// fresh per command; the daemon is the only writer so no optimistic lock is
// needed.
func GeneralByIDTx(tx *sqlx.Tx, id int64) (*General, error) {
	var g General
	if err := tx.Get(&g, `SELECT * FROM generals WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return &g, nil
}

// InsertGeneral creates a general and returns its id.
func (s *Store) InsertGeneral(ctx context.Context, g *General) (int64, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO generals
		(session_id, faction_id, city_id, name, leadership, strength, intellect,
		 personality, items, troops, training, gold, rice)
		VALUES (:session_id, :faction_id, :city_id, :name, :leadership, :strength,
		 :intellect, :personality, :items, :troops, :training, :gold, :rice)`, g)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveGeneralTx writes a mutated general snapshot back.
func SaveGeneralTx(tx *sqlx.Tx, g *General) error {
	_, err := tx.NamedExec(`UPDATE generals SET
		faction_id = :faction_id, city_id = :city_id, leadership = :leadership,
		strength = :strength, intellect = :intellect, personality = :personality,
		items = :items, troops = :troops, training = :training,
		gold = :gold, rice = :rice
		WHERE id = :id`, g)
	return err
}

// GeneralsByCity lists generals stationed in a city.
func (s *Store) GeneralsByCity(ctx context.Context, cityID int64) ([]General, error) {
	var gs []General
	err := s.db.SelectContext(ctx, &gs,
		`SELECT * FROM generals WHERE city_id = ? ORDER BY id`, cityID)
	return gs, err
}

// GeneralsByCityTx lists a city's garrison inside a transaction, strongest
// leader first.
func GeneralsByCityTx(tx *sqlx.Tx, cityID int64) ([]General, error) {
	var gs []General
	err := tx.Select(&gs,
		`SELECT * FROM generals WHERE city_id = ? ORDER BY leadership DESC, id`, cityID)
	return gs, err
}

// ---------------------------------------------------------------------------
// Cities
// ---------------------------------------------------------------------------

// CityByID loads a city snapshot.
func (s *Store) CityByID(ctx context.Context, id int64) (*City, error) {
	var c City
	if err := s.db.GetContext(ctx, &c, `SELECT * FROM cities WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return &c, nil
}

// CityByIDTx loads a city inside a transaction.
func CityByIDTx(tx *sqlx.Tx, id int64) (*City, error) {
	var c City
	if err := tx.Get(&c, `SELECT * FROM cities WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return &c, nil
}

// InsertCity creates a city and returns its id.
func (s *Store) InsertCity(ctx context.Context, c *City) (int64, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO cities
		(session_id, faction_id, name, x, y, population, commerce, agriculture)
		VALUES (:session_id, :faction_id, :name, :x, :y, :population, :commerce, :agriculture)`, c)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveCityTx writes a mutated city snapshot back.
func SaveCityTx(tx *sqlx.Tx, c *City) error {
	_, err := tx.NamedExec(`UPDATE cities SET
		faction_id = :faction_id, population = :population,
		commerce = :commerce, agriculture = :agriculture
		WHERE id = :id`, c)
	return err
}

// CitiesBySession lists every city of a session.
func (s *Store) CitiesBySession(ctx context.Context, sessionID string) ([]City, error) {
	var cs []City
	err := s.db.SelectContext(ctx, &cs,
		`SELECT * FROM cities WHERE session_id = ? ORDER BY id`, sessionID)
	return cs, err
}

// CityCountByFaction returns how many cities a faction still holds.
func (s *Store) CityCountByFaction(ctx context.Context, factionID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM cities WHERE faction_id = ?`, factionID)
	return n, err
}

// CityCountByFactionTx is CityCountByFaction inside a transaction, used by
// battle resolution to detect elimination atomically with the conquest.
func CityCountByFactionTx(tx *sqlx.Tx, factionID int64) (int, error) {
	var n int
	err := tx.Get(&n, `SELECT COUNT(*) FROM cities WHERE faction_id = ?`, factionID)
	return n, err
}

// ---------------------------------------------------------------------------
// Factions
// ---------------------------------------------------------------------------

// FactionByID loads a faction snapshot.
func (s *Store) FactionByID(ctx context.Context, id int64) (*Faction, error) {
	var f Faction
	if err := s.db.GetContext(ctx, &f, `SELECT * FROM factions WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return &f, nil
}

// FactionByIDTx loads a faction inside a transaction.
func FactionByIDTx(tx *sqlx.Tx, id int64) (*Faction, error) {
	var f Faction
	if err := tx.Get(&f, `SELECT * FROM factions WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return &f, nil
}

// InsertFaction creates a faction and returns its id.
func (s *Store) InsertFaction(ctx context.Context, f *Faction) (int64, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO factions
		(session_id, name, doctrine, gold, rice, eliminated)
		VALUES (:session_id, :name, :doctrine, :gold, :rice, :eliminated)`, f)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveFactionTx writes a mutated faction snapshot back.
func SaveFactionTx(tx *sqlx.Tx, f *Faction) error {
	_, err := tx.NamedExec(`UPDATE factions SET
		gold = :gold, rice = :rice, eliminated = :eliminated
		WHERE id = :id`, f)
	return err
}

// FactionsBySession lists every faction of a session.
func (s *Store) FactionsBySession(ctx context.Context, sessionID string) ([]Faction, error) {
	var fs []Faction
	err := s.db.SelectContext(ctx, &fs,
		`SELECT * FROM factions WHERE session_id = ? ORDER BY id`, sessionID)
	return fs, err
}

// AddFactionResources applies a gold/rice delta to one faction's treasury.
func (s *Store) AddFactionResources(ctx context.Context, factionID int64, gold, rice int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE factions SET gold = gold + ?, rice = rice + ? WHERE id = ?`,
		gold, rice, factionID)
	return err
}

// GrantFactionResources applies a gold/rice delta to every faction of a
// session still in play.
func (s *Store) GrantFactionResources(ctx context.Context, sessionID string, gold, rice int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE factions SET gold = gold + ?, rice = rice + ?
		 WHERE session_id = ? AND eliminated = 0`, gold, rice, sessionID)
	return err
}

// RemainingFactionCount precomputes the count fed into environment
// snapshots; condition evaluation itself never queries.
func (s *Store) RemainingFactionCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM factions WHERE session_id = ? AND eliminated = 0`, sessionID)
	return n, err
}

// ---------------------------------------------------------------------------
// Battles
// ---------------------------------------------------------------------------

// InsertBattleTx opens a battle inside the attack command's transaction.
func InsertBattleTx(tx *sqlx.Tx, b *Battle) error {
	_, err := tx.NamedExec(`INSERT INTO battles
		(session_id, city_id, attacker_general_id, defender_general_id,
		 attacker_faction_id, defender_faction_id, attacker_troops,
		 defender_troops, round, status)
		VALUES (:session_id, :city_id, :attacker_general_id, :defender_general_id,
		 :attacker_faction_id, :defender_faction_id, :attacker_troops,
		 :defender_troops, :round, :status)`, b)
	return err
}

// SaveBattleTx writes battle round progress back.
func SaveBattleTx(tx *sqlx.Tx, b *Battle) error {
	_, err := tx.NamedExec(`UPDATE battles SET
		attacker_troops = :attacker_troops, defender_troops = :defender_troops,
		round = :round, status = :status
		WHERE id = :id`, b)
	return err
}

// ActiveBattles lists the battles the tick loop still has to advance.
func (s *Store) ActiveBattles(ctx context.Context, sessionID string) ([]Battle, error) {
	var bs []Battle
	err := s.db.SelectContext(ctx, &bs,
		`SELECT * FROM battles WHERE session_id = ? AND status = ? ORDER BY id`,
		sessionID, BattleActive)
	return bs, err
}

// ---------------------------------------------------------------------------
// Session meta
// ---------------------------------------------------------------------------

// EnsureSessionMeta returns the clock anchor for a session, creating it on
// first sight.
func (s *Store) EnsureSessionMeta(ctx context.Context, sessionID string, now time.Time) (*SessionMeta, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_meta (session_id, started_at_ms, last_turn_day)
		 VALUES (?, ?, -1)`, sessionID, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	var m SessionMeta
	if err := s.db.GetContext(ctx, &m,
		`SELECT * FROM session_meta WHERE session_id = ?`, sessionID); err != nil {
		return nil, wrapGet(err)
	}
	return &m, nil
}

// SetLastTurnDay records turn progress so a day is resolved exactly once.
func (s *Store) SetLastTurnDay(ctx context.Context, sessionID string, day int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_meta SET last_turn_day = ? WHERE session_id = ?`, day, sessionID)
	return err
}
