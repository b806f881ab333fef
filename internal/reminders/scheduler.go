package reminders

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// Appointment is the part of a booking the scheduler needs.
type Appointment struct {
	BookingID uuid.UUID
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

// Policy is the reminder configuration in effect when a booking is created.
type Policy struct {
	ReminderOffsets       []int
	ThankYouOffsetMinutes int
	EnableReminders       bool
	EnableThankYou        bool
	Location              *time.Location
}

// PolicyFromSettings derives the scheduling policy from clinic settings.
func PolicyFromSettings(s *clinic.Settings) (Policy, error) {
	loc, err := s.Location()
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		ReminderOffsets:       append([]int(nil), s.Reminders.OffsetsMinutes...),
		ThankYouOffsetMinutes: s.Reminders.ThankYouOffsetMinutes,
		EnableReminders:       s.Reminders.EnableReminders,
		EnableThankYou:        s.Reminders.EnableThankYou,
		Location:              loc,
	}, nil
}

// ScheduleFor computes the unsaved tasks for an appointment. The wall-clock
// times are read in the policy's fixed offset. Tasks whose send time is not
// strictly after now are omitted.
func ScheduleFor(appt Appointment, p Policy, now time.Time) ([]Task, error) {
	if !p.EnableReminders && !p.EnableThankYou {
		return nil, nil
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	date, err := schedule.ParseDate(appt.Date)
	if err != nil {
		return nil, err
	}
	slot, err := schedule.ParseInterval(appt.StartTime, appt.EndTime)
	if err != nil {
		return nil, err
	}
	start := schedule.Combine(date, slot.Start, loc)
	end := schedule.Combine(date, slot.End, loc)

	var tasks []Task
	add := func(kind Kind, offset int, sendAt time.Time) {
		if !sendAt.After(now) {
			return
		}
		tasks = append(tasks, Task{
			ID:            uuid.New(),
			BookingID:     appt.BookingID,
			Kind:          kind,
			OffsetMinutes: offset,
			SendAt:        sendAt.UTC(),
			Status:        StatusPending,
		})
	}

	if p.EnableReminders {
		for _, offset := range p.ReminderOffsets {
			if offset <= 0 {
				return nil, fmt.Errorf("%w: reminder offset %d must be positive", schedule.ErrInvalidInput, offset)
			}
			add(KindReminder, offset, start.Add(-time.Duration(offset)*time.Minute))
		}
	}
	if p.EnableThankYou {
		if p.ThankYouOffsetMinutes < 0 {
			return nil, fmt.Errorf("%w: thank-you offset %d must not be negative", schedule.ErrInvalidInput, p.ThankYouOffsetMinutes)
		}
		add(KindThankYou, p.ThankYouOffsetMinutes, end.Add(time.Duration(p.ThankYouOffsetMinutes)*time.Minute))
	}
	return tasks, nil
}
