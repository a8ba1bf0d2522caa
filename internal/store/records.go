package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Faction is a playable nation. Doctrine names a modifier unit applied to
// every general of the faction.
type Faction struct {
	ID         int64  `db:"id"`
	SessionID  string `db:"session_id"`
	Name       string `db:"name"`
	Doctrine   string `db:"doctrine"`
	Gold       int64  `db:"gold"`
	Rice       int64  `db:"rice"`
	Eliminated bool   `db:"eliminated"`
}

// General is the primary actor entity. Personality and items name modifier
// units applied after the faction doctrine.
type General struct {
	ID          int64  `db:"id"`
	SessionID   string `db:"session_id"`
	FactionID   int64  `db:"faction_id"`
	CityID      int64  `db:"city_id"`
	Name        string `db:"name"`
	Leadership  int    `db:"leadership"`
	Strength    int    `db:"strength"`
	Intellect   int    `db:"intellect"`
	Personality string `db:"personality"`
	Items       Items  `db:"items"`
	Troops      int    `db:"troops"`
	Training    int    `db:"training"`
	Gold        int64  `db:"gold"`
	Rice        int64  `db:"rice"`
}

// Items is a JSON-encoded list of equipped item ids.
type Items []string

// Value implements driver.Valuer.
func (it Items) Value() (driver.Value, error) {
	if it == nil {
		return "[]", nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (it *Items) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*it = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), it)
	case []byte:
		return json.Unmarshal(v, it)
	default:
		return fmt.Errorf("items: cannot scan %T", src)
	}
}

// City is a settlement owned by a faction.
type City struct {
	ID          int64  `db:"id"`
	SessionID   string `db:"session_id"`
	FactionID   int64  `db:"faction_id"`
	Name        string `db:"name"`
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Population  int    `db:"population"`
	Commerce    int    `db:"commerce"`
	Agriculture int    `db:"agriculture"`
}

// Distance is the Manhattan map distance to another city.
func (c *City) Distance(other *City) int {
	dx := c.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := c.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Battle statuses.
const (
	BattleActive = "active"
	BattleDone   = "done"
)

// Battle is an in-progress siege resolved round by round from the tick loop.
// DefenderGeneralID is nil when the city defends with militia only.
type Battle struct {
	ID                int64  `db:"id"`
	SessionID         string `db:"session_id"`
	CityID            int64  `db:"city_id"`
	AttackerGeneralID int64  `db:"attacker_general_id"`
	DefenderGeneralID *int64 `db:"defender_general_id"`
	AttackerFactionID int64  `db:"attacker_faction_id"`
	DefenderFactionID int64  `db:"defender_faction_id"`
	AttackerTroops    int    `db:"attacker_troops"`
	DefenderTroops    int    `db:"defender_troops"`
	Round             int    `db:"round"`
	Status            string `db:"status"`
}

// SessionMeta anchors a session's game clock and turn progress.
type SessionMeta struct {
	SessionID   string `db:"session_id"`
	StartedAtMS int64  `db:"started_at_ms"`
	LastTurnDay int    `db:"last_turn_day"`
}
