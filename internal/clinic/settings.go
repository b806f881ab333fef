// Package clinic provides the clinic's scheduling settings: working hours,
// the fixed UTC offset bookings are expressed in, reminder timing and the
// backup schedule.
package clinic

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// WorkingHours converts the JSON shape into the slot calculator's form.
func (b *BusinessHours) WorkingHours() (availability.WorkingHours, error) {
	hours := availability.WorkingHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		dh := b.GetHoursForDay(d)
		if dh == nil {
			continue
		}
		iv, err := schedule.ParseInterval(dh.Open, dh.Close)
		if err != nil {
			return nil, fmt.Errorf("clinic: %s hours: %w", d, err)
		}
		hours[d] = iv
	}
	return hours, nil
}

// ReminderPrefs controls which notifications are scheduled and when.
type ReminderPrefs struct {
	// OffsetsMinutes are minutes before the appointment start, e.g. [1440, 120].
	OffsetsMinutes        []int `json:"offsets_minutes"`
	ThankYouOffsetMinutes int   `json:"thank_you_offset_minutes"`
	EnableReminders       bool  `json:"enable_reminders"`
	EnableThankYou        bool  `json:"enable_thank_you"`
}

// Settings holds the clinic's scheduling configuration.
type Settings struct {
	ClinicID        string                    `json:"clinic_id"`
	Name            string                    `json:"name"`
	Email           string                    `json:"email,omitempty"`
	Phone           string                    `json:"phone,omitempty"`
	UTCOffset       string                    `json:"utc_offset"` // e.g. "+03:00"
	BusinessHours   BusinessHours             `json:"business_hours"`
	SlotStepMinutes int                       `json:"slot_step_minutes"`
	Reminders       ReminderPrefs             `json:"reminders"`
	Backup          schedule.RecurrencePolicy `json:"backup"`
	UpdatedAt       time.Time                 `json:"updated_at,omitempty"`
}

// Defaults are the values used when no settings have been saved yet.
type Defaults struct {
	ClinicID              string
	Name                  string
	UTCOffset             string
	SlotStepMinutes       int
	ReminderOffsets       []int
	ThankYouOffsetMinutes int
	EnableReminders       bool
	EnableThankYou        bool
}

// DefaultSettings returns Monday to Saturday 09:00-18:00 with Sunday closed,
// reminders a day and two hours ahead, and manual backups.
func DefaultSettings(d Defaults) *Settings {
	weekday := func() *DayHours { return &DayHours{Open: "09:00", Close: "18:00"} }
	offsets := d.ReminderOffsets
	if offsets == nil {
		offsets = []int{1440, 120}
	}
	s := &Settings{
		ClinicID:  d.ClinicID,
		Name:      d.Name,
		UTCOffset: d.UTCOffset,
		BusinessHours: BusinessHours{
			Monday:    weekday(),
			Tuesday:   weekday(),
			Wednesday: weekday(),
			Thursday:  weekday(),
			Friday:    weekday(),
			Saturday:  weekday(),
			Sunday:    nil, // Closed
		},
		SlotStepMinutes: d.SlotStepMinutes,
		Reminders: ReminderPrefs{
			OffsetsMinutes:        append([]int(nil), offsets...),
			ThankYouOffsetMinutes: d.ThankYouOffsetMinutes,
			EnableReminders:       d.EnableReminders,
			EnableThankYou:        d.EnableThankYou,
		},
		Backup: schedule.RecurrencePolicy{Frequency: schedule.FrequencyManual, TimeOfDay: "02:00", DayOfMonth: 1},
	}
	s.Normalize()
	return s
}

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("clinic: invalid settings")

// Normalize fills defaults and clamps values that have a safe canonical form.
func (s *Settings) Normalize() {
	if s.UTCOffset == "" {
		s.UTCOffset = "+00:00"
	}
	if s.SlotStepMinutes <= 0 {
		s.SlotStepMinutes = availability.DefaultStepMinutes
	}
	if s.Backup.Frequency == "" {
		s.Backup.Frequency = schedule.FrequencyManual
	}
	s.Backup.DayOfMonth = schedule.ClampDayOfMonth(s.Backup.DayOfMonth)

	seen := make(map[int]struct{}, len(s.Reminders.OffsetsMinutes))
	offsets := make([]int, 0, len(s.Reminders.OffsetsMinutes))
	for _, o := range s.Reminders.OffsetsMinutes {
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		offsets = append(offsets, o)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))
	s.Reminders.OffsetsMinutes = offsets
}

// Validate checks that the settings can drive slot generation and reminders.
func (s *Settings) Validate() error {
	if _, err := schedule.ParseUTCOffset(s.UTCOffset); err != nil {
		return fmt.Errorf("%w: utc_offset: %v", ErrInvalidSettings, err)
	}
	if _, err := s.BusinessHours.WorkingHours(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	for _, o := range s.Reminders.OffsetsMinutes {
		if o <= 0 {
			return fmt.Errorf("%w: reminder offsets must be positive, got %d", ErrInvalidSettings, o)
		}
	}
	if s.Reminders.ThankYouOffsetMinutes < 0 {
		return fmt.Errorf("%w: thank-you offset must not be negative", ErrInvalidSettings)
	}
	if err := s.Backup.Validate(); err != nil {
		return fmt.Errorf("%w: backup: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Location returns the fixed-offset zone bookings are expressed in.
func (s *Settings) Location() (*time.Location, error) {
	loc, err := schedule.ParseUTCOffset(s.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("clinic: location: %w", err)
	}
	return loc, nil
}

// WorkingHours returns the parsed per-weekday windows.
func (s *Settings) WorkingHours() (availability.WorkingHours, error) {
	return s.BusinessHours.WorkingHours()
}
