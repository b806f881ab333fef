// Package availability computes bookable appointment slots for a day from the
// clinic's working hours and the bookings already on that day.
package availability

import (
	"fmt"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// DefaultStepMinutes is the slot grid used by the reference policy: one start per whole hour.
const DefaultStepMinutes = 60

// InvalidInputError reports a malformed date, clock or duration.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("availability: invalid %s: %s", e.Field, e.Reason)
}

// Is lets callers match any invalid-input failure with errors.Is(err, schedule.ErrInvalidInput).
func (e *InvalidInputError) Is(target error) bool {
	return target == schedule.ErrInvalidInput
}

// WorkingHours maps a weekday to its [open, close) window. A missing weekday is closed.
type WorkingHours map[time.Weekday]schedule.Interval

// ReferenceHours is Monday to Saturday 09:00-18:00 with Sunday closed.
func ReferenceHours() WorkingHours {
	hours := WorkingHours{}
	for d := time.Monday; d <= time.Saturday; d++ {
		hours[d] = schedule.Interval{Start: schedule.Hour(9), End: schedule.Hour(18)}
	}
	return hours
}

// For returns the window for a weekday and whether the clinic is open.
func (w WorkingHours) For(day time.Weekday) (schedule.Interval, bool) {
	iv, ok := w[day]
	if !ok || iv.End <= iv.Start {
		return schedule.Interval{}, false
	}
	return iv, true
}

// Existing is a booking already on the requested day.
type Existing struct {
	Start  string // "HH:MM"
	End    string // "HH:MM"
	Active bool   // pending or confirmed; cancelled bookings free their slot
}

// Slot is a bookable [Start, End) interval.
type Slot struct {
	Start schedule.Clock
	End   schedule.Clock
}

// Time returns the slot start as "HH:MM".
func (s Slot) Time() string { return s.Start.String() }

// Label returns the display form "HH:MM - HH:MM".
func (s Slot) Label() string { return s.Interval().String() }

// Interval returns the slot as a schedule interval.
func (s Slot) Interval() schedule.Interval { return schedule.Interval{Start: s.Start, End: s.End} }

// Result carries the slots plus an advisory message when nothing can be offered.
type Result struct {
	Slots   []Slot
	Message string
	Closed  bool
}

// Query is one availability request.
type Query struct {
	Date            string
	DurationMinutes int
	Hours           WorkingHours
	Existing        []Existing
	// Now, when set, hides start times that are already past on today's date and
	// rejects past dates. It must already be in the clinic's offset.
	Now time.Time
}

// Calculator walks the slot grid for a day.
type Calculator struct {
	stepMinutes int
}

// NewCalculator creates a calculator with the given grid step in minutes.
func NewCalculator(stepMinutes int) *Calculator {
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}
	return &Calculator{stepMinutes: stepMinutes}
}

// StepMinutes returns the grid step.
func (c *Calculator) StepMinutes() int { return c.stepMinutes }

// Slots returns the ordered bookable start times for q. Closed days and
// durations that cannot fit produce an empty list, not an error.
func (c *Calculator) Slots(q Query) (Result, error) {
	date, err := schedule.ParseDate(q.Date)
	if err != nil {
		return Result{}, &InvalidInputError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if q.DurationMinutes <= 0 {
		return Result{}, &InvalidInputError{Field: "durationMinutes", Reason: "must be positive"}
	}

	busy := make([]schedule.Interval, 0, len(q.Existing))
	for _, b := range q.Existing {
		if !b.Active {
			continue
		}
		iv, err := schedule.ParseInterval(b.Start, b.End)
		if err != nil {
			return Result{}, &InvalidInputError{Field: "existing booking", Reason: err.Error()}
		}
		busy = append(busy, iv)
	}

	weekday := date.Weekday()
	window, open := q.Hours.For(weekday)
	if !open {
		return Result{
			Closed:  true,
			Message: fmt.Sprintf("We are closed on %ss. Please choose another day.", weekday),
		}, nil
	}

	notBefore := window.Start
	if !q.Now.IsZero() {
		today := time.Date(q.Now.Year(), q.Now.Month(), q.Now.Day(), 0, 0, 0, 0, time.UTC)
		switch {
		case date.Before(today):
			return Result{Message: "This date has already passed. Please choose another day."}, nil
		case date.Equal(today):
			// Only starts strictly after the current minute are offered.
			if cutoff := schedule.ClockOf(q.Now) + 1; cutoff > notBefore {
				notBefore = cutoff
			}
		}
	}

	var slots []Slot
	for start := window.Start; start < window.End; start = start.Add(c.stepMinutes) {
		if start < notBefore {
			continue
		}
		candidate := schedule.Interval{Start: start, End: start.Add(q.DurationMinutes)}
		if candidate.End > window.End {
			break
		}
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
	}

	res := Result{Slots: slots}
	if len(slots) == 0 {
		res.Message = "No available times on this date. Please choose another day."
	}
	return res, nil
}

// Fits reports whether [start, start+duration) lies inside the working window
// for the weekday of date.
func Fits(hours WorkingHours, date time.Time, iv schedule.Interval) bool {
	window, open := hours.For(date.Weekday())
	return open && iv.Within(window)
}

func overlapsAny(candidate schedule.Interval, busy []schedule.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
