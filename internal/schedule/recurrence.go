package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is how often a periodic task should run.
type Frequency string

const (
	FrequencyManual  Frequency = "manual"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ErrNotApplicable is returned for manual policies, which have no scheduled instant.
var ErrNotApplicable = errors.New("schedule: manual frequency has no scheduled instant")

// RecurrencePolicy describes when a periodic task (for example a backup) is due.
type RecurrencePolicy struct {
	Frequency  Frequency  `json:"frequency"`
	TimeOfDay  string     `json:"time_of_day"`  // "HH:MM" local time
	DayOfWeek  int        `json:"day_of_week"`  // 0 = Sunday, used by weekly
	DayOfMonth int        `json:"day_of_month"` // 1-28, used by monthly
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}

// ClampDayOfMonth keeps a monthly anchor inside [1, 28] so every month has it.
func ClampDayOfMonth(day int) int {
	if day < 1 {
		return 1
	}
	if day > 28 {
		return 28
	}
	return day
}

// Validate checks the fields the policy's frequency relies on.
func (p RecurrencePolicy) Validate() error {
	switch p.Frequency {
	case FrequencyManual:
		return nil
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, p.Frequency)
	}
	if _, err := ParseClock(p.TimeOfDay); err != nil {
		return err
	}
	if p.Frequency == FrequencyWeekly && (p.DayOfWeek < 0 || p.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week %d must be 0-6", ErrInvalidInput, p.DayOfWeek)
	}
	return nil
}

// LatestScheduledInstant returns the most recent scheduled instant at or before
// now. The policy's time of day is read in now's location, so callers pass now
// already converted to the clinic's local offset.
func LatestScheduledInstant(p RecurrencePolicy, now time.Time) (time.Time, error) {
	if p.Frequency == FrequencyManual {
		return time.Time{}, ErrNotApplicable
	}
	tod, err := ParseClock(p.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	loc := now.Location()
	y, m, d := now.Date()
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, int(tod)/60, int(tod)%60, 0, 0, loc)
	}

	switch p.Frequency {
	case FrequencyDaily:
		candidate := at(y, m, d)
		if candidate.After(now) {
			candidate = at(y, m, d-1)
		}
		return candidate, nil

	case FrequencyWeekly:
		if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
			return time.Time{}, fmt.Errorf("%w: day_of_week %d must be 0-6", ErrInvalidInput, p.DayOfWeek)
		}
		back := (int(now.Weekday()) - p.DayOfWeek + 7) % 7
		candidate := at(y, m, d-back)
		if candidate.After(now) {
			candidate = at(y, m, d-back-7)
		}
		return candidate, nil

	case FrequencyMonthly:
		day := ClampDayOfMonth(p.DayOfMonth)
		candidate := at(y, m, day)
		if candidate.After(now) {
			candidate = at(y, m-1, day)
		}
		return candidate, nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, p.Frequency)
}

// IsDue reports whether a run is due: never run, or last run before the latest
// scheduled instant. Manual policies are never due.
func IsDue(p RecurrencePolicy, now time.Time) (bool, error) {
	if p.Frequency == FrequencyManual {
		return false, nil
	}
	latest, err := LatestScheduledInstant(p, now)
	if err != nil {
		return false, err
	}
	if p.LastRunAt == nil {
		return true, nil
	}
	return p.LastRunAt.Before(latest), nil
}
