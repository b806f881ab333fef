// Package schedule holds the calendar arithmetic shared by slot generation,
// booking conflict checks, reminder timing and periodic maintenance jobs.
// Everything here is pure: no I/O and no reads of the wall clock.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput marks malformed dates, clocks, offsets or durations.
var ErrInvalidInput = errors.New("schedule: invalid input")

// DateLayout is the wire format for calendar days.
const DateLayout = time.DateOnly

// MinutesPerDay bounds a Clock.
const MinutesPerDay = 24 * 60

// Clock is a local wall-clock time expressed as minutes since midnight.
type Clock int

// ParseClock parses a strict "HH:MM" 24-hour value.
func ParseClock(v string) (Clock, error) {
	v = strings.TrimSpace(v)
	if len(v) != 5 || v[2] != ':' {
		return 0, fmt.Errorf("%w: clock %q must be HH:MM", ErrInvalidInput, v)
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q: %v", ErrInvalidInput, v, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustClock is ParseClock for compile-time constants; it panics on bad input.
func MustClock(v string) Clock {
	c, err := ParseClock(v)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock position of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Hour builds a Clock from a whole hour.
func Hour(h int) Clock { return Clock(h * 60) }

// Minutes returns the clock as minutes since midnight.
func (c Clock) Minutes() int { return int(c) }

// Add shifts the clock by d minutes without wrapping.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// Valid reports whether the clock is inside a single day.
func (c Clock) Valid() bool { return c >= 0 && c < MinutesPerDay }

// String formats the clock as "HH:MM". Values past midnight keep counting hours.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Interval is a half-open [Start, End) range of wall-clock minutes on one day.
type Interval struct {
	Start Clock
	End   Clock
}

// NewInterval validates that end is after start.
func NewInterval(start, end Clock) (Interval, error) {
	if end <= start {
		return Interval{}, fmt.Errorf("%w: interval end %s must be after start %s", ErrInvalidInput, end, start)
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses two "HH:MM" values into an Interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// Overlaps applies the half-open overlap test: a.Start < b.End && a.End > b.Start.
// Touching intervals (one ends exactly when the other starts) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// Within reports whether i lies entirely inside outer.
func (i Interval) Within(outer Interval) bool {
	return i.Start >= outer.Start && i.End <= outer.End
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

// String renders "HH:MM - HH:MM", the display label used for slots.
func (i Interval) String() string {
	return i.Start.String() + " - " + i.End.String()
}

// ParseDate parses a "YYYY-MM-DD" calendar day. The result is midnight UTC and
// only its year, month and day are meaningful.
func ParseDate(v string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, v)
	}
	return d, nil
}

// Combine anchors a wall-clock time on a calendar day in loc.
func Combine(date time.Time, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(c) * time.Minute)
}

// SameDay reports whether a and b fall on the same calendar day in their own locations.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
