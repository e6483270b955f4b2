// Package schedule parses cron expressions and answers whether a job is due.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the six-field form: second minute hour dom month dow.
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Schedule wraps a parsed cron expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// Prefabricated schedules covering the common cadences.
var (
	Secondly         = MustParse("* * * * * *")
	Minutely         = MustParse("0 * * * * *")
	EveryFiveMinutes = MustParse("0 */5 * * * *")
)

// Parse parses a six-field cron expression.
func Parse(expr string) (Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return Schedule{expr: expr, sched: s}, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// prefab schedules whose expressions are known-good at compile time.
func MustParse(expr string) Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the original cron expression.
func (s Schedule) String() string {
	return s.expr
}

// Due reports whether the first firing strictly after last is strictly
// before now. If no future firing exists relative to last, the epoch-zero
// sentinel is substituted, which makes Due trivially true.
func (s Schedule) Due(last, now time.Time) bool {
	next := s.sched.Next(last)
	if next.IsZero() {
		next = time.Unix(0, 0).UTC()
	}
	return next.Before(now)
}

// Zero reports whether this Schedule has no parsed expression.
func (s Schedule) Zero() bool {
	return s.sched == nil
}
