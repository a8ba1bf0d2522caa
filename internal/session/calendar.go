package session

import (
	"fmt"
	"time"
)

// MonthsPerYear is fixed; only days-per-month varies per session.
const MonthsPerYear = 12

// GameDay converts elapsed wall time into a game-day count, scaled by the
// session's speed multiplier. dayLength is the wall duration of one game day
// at speed 1.0.
func (s *Session) GameDay(elapsed, dayLength time.Duration) int {
	if s.GameSpeed <= 0 || dayLength <= 0 {
		return 0
	}
	return int(elapsed.Seconds() * s.GameSpeed / dayLength.Seconds())
}

// Date converts a game-day count into the session calendar.
func (s *Session) Date(gameDay int) (year, month, day int) {
	months := gameDay / s.DaysPerMonth
	day = gameDay%s.DaysPerMonth + 1
	year = s.StartYear + months/MonthsPerYear
	month = months%MonthsPerYear + 1
	return year, month, day
}

// DateString formats a game day for logs.
func (s *Session) DateString(gameDay int) string {
	y, m, d := s.Date(gameDay)
	return fmt.Sprintf("year %d month %d day %d", y, m, d)
}
