package bookings

import (
	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// AssertNoConflict checks candidate against the bookings of date using the
// same half-open overlap test as slot generation. Only active bookings take
// part. Callers run it inside the transaction that inserts the booking.
func AssertNoConflict(date string, existing []Booking, candidate schedule.Interval) error {
	for _, b := range existing {
		if !b.Status.Active() || b.Date != date {
			continue
		}
		iv, err := b.Interval()
		if err != nil {
			return err
		}
		if candidate.Overlaps(iv) {
			return &ConflictError{Date: date, Start: iv.Start.String(), End: iv.End.String()}
		}
	}
	return nil
}

// toExisting maps bookings to the slot calculator's input.
func toExisting(bookings []Booking) []availability.Existing {
	out := make([]availability.Existing, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, availability.Existing{Start: b.StartTime, End: b.EndTime, Active: b.Status.Active()})
	}
	return out
}
