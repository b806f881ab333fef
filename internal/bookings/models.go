// Package bookings creates and manages clinic appointments while keeping at
// most one active booking per time interval.
package bookings

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the booking holds its interval.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ParseStatus accepts any case.
func ParseStatus(v string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown booking status %q", schedule.ErrInvalidInput, v)
	}
}

// Booking is an appointment for one service on one day.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	ServiceID uuid.UUID `json:"serviceId"`
	Date      string    `json:"date"`      // YYYY-MM-DD, clinic-local
	StartTime string    `json:"startTime"` // HH:MM
	EndTime   string    `json:"endTime"`   // HH:MM
	Status    Status    `json:"status"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	ChildName *string   `json:"childName,omitempty"`
	ChildAge  *int      `json:"childAge,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Interval returns the booking's [start, end) wall-clock range.
func (b Booking) Interval() (schedule.Interval, error) {
	return schedule.ParseInterval(b.StartTime, b.EndTime)
}

var (
	// ErrConflict matches every ConflictError.
	ErrConflict = errors.New("bookings: time no longer available")
	// ErrNotFound is returned for unknown booking ids.
	ErrNotFound = errors.New("bookings: not found")
)

// ConflictError names the active booking interval a request overlaps.
type ConflictError struct {
	Date  string
	Start string
	End   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bookings: %s %s-%s is no longer available", e.Date, e.Start, e.End)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.FieldErrors[f])
	}
	return "bookings: invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == schedule.ErrInvalidInput }

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{FieldErrors: map[string]string{field: msg}}
}
