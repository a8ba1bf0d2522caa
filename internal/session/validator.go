package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parkjunho/samguk/internal/condition"
)

// ErrInvalid marks a configuration rejected by Validate.
var ErrInvalid = errors.New("invalid session configuration")

// Validate checks the file for duplicate ids, required fields, and buildable
// event conditions. Malformed definitions are rejected here, before the
// daemon ever evaluates them.
func Validate(cfg *File) error {
	if cfg.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalid)
	}
	var errs []string
	seen := make(map[string]struct{})

	for i, s := range cfg.Sessions {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("sessions[%d]: id is required", i))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate session id %q", s.ID))
		}
		seen[s.ID] = struct{}{}

		if s.GameSpeed < 0 {
			errs = append(errs, fmt.Sprintf("session %s: game_speed must not be negative", s.ID))
		}

		kinds := make(map[string]struct{})
		for _, c := range s.Commands {
			if c.Kind == "" {
				errs = append(errs, fmt.Sprintf("session %s: command kind is required", s.ID))
				continue
			}
			if _, dup := kinds[c.Kind]; dup {
				errs = append(errs, fmt.Sprintf("session %s: duplicate command kind %q", s.ID, c.Kind))
			}
			kinds[c.Kind] = struct{}{}
			for j, e := range c.Effects {
				if e.Entity == "" || e.Stat == "" {
					errs = append(errs, fmt.Sprintf("session %s: command %s effects[%d]: entity and stat are required", s.ID, c.Kind, j))
				}
			}
		}

		eventIDs := make(map[string]struct{})
		for _, ev := range s.Events {
			if ev.ID == "" {
				errs = append(errs, fmt.Sprintf("session %s: event id is required", s.ID))
				continue
			}
			if _, dup := eventIDs[ev.ID]; dup {
				errs = append(errs, fmt.Sprintf("session %s: duplicate event id %q", s.ID, ev.ID))
			}
			eventIDs[ev.ID] = struct{}{}
			if _, err := condition.Build(ev.Condition); err != nil {
				errs = append(errs, fmt.Sprintf("session %s: event %s: %v", s.ID, ev.ID, err))
			}
			for _, a := range ev.Actions {
				if a.Type == "" {
					errs = append(errs, fmt.Sprintf("session %s: event %s: action type is required", s.ID, ev.ID))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
