// Package session holds per-session game configuration: which command kinds
// are enabled, their effect maps and duration rules, the event definitions,
// and the game calendar.
package session

import "github.com/parkjunho/samguk/internal/condition"

// File is the top-level YAML structure.
type File struct {
	Version  string    `yaml:"version"`
	Sessions []Session `yaml:"sessions"`
}

// Session configures one game session.
type Session struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	StartYear int     `yaml:"start_year"`
	// DaysPerMonth fixes the game calendar; months_per_year is always 12.
	DaysPerMonth int     `yaml:"days_per_month"`
	GameSpeed    float64 `yaml:"game_speed"`

	Commands []CommandConf `yaml:"commands"`
	Events   []EventDef    `yaml:"events"`
}

// CommandConf enables a command kind and carries its duration rule and, for
// kinds without a native handler, a declarative effect map.
type CommandConf struct {
	Kind    string `yaml:"kind"`
	Enabled bool   `yaml:"enabled"`

	// DurationDays defers completion by a fixed number of game days.
	DurationDays int `yaml:"duration_days"`
	// DurationPerDistance defers completion by game days per map distance
	// unit (movement-style kinds). Mutually additive with DurationDays.
	DurationPerDistance float64 `yaml:"duration_per_distance"`

	Effects []EffectConf `yaml:"effects"`
}

// EffectConf is one entry of a declarative effect map: a base amount routed
// through the modifier pipeline under (category, subcategory), then applied
// as a delta to a stat of the named entity.
type EffectConf struct {
	Category    string  `yaml:"category"`
	Subcategory string  `yaml:"subcategory"`
	Entity      string  `yaml:"entity"` // "general" | "city" | "faction"
	Stat        string  `yaml:"stat"`   // e.g. "gold", "rice", "training", "commerce"
	Base        float64 `yaml:"base"`
}

// EventDef pairs a condition definition with an ordered list of actions.
type EventDef struct {
	ID        string        `yaml:"id"`
	Enabled   bool          `yaml:"enabled"`
	Condition condition.Def `yaml:"condition"`
	Actions   []ActionDef   `yaml:"actions"`
}

// ActionDef is an action reference inside an event definition.
type ActionDef struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Command returns the configuration for a kind, or nil if absent.
func (s *Session) Command(kind string) *CommandConf {
	for i := range s.Commands {
		if s.Commands[i].Kind == kind {
			return &s.Commands[i]
		}
	}
	return nil
}
