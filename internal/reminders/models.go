// Package reminders schedules and dispatches appointment notifications:
// reminders before a visit and a thank-you message after it.
package reminders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the message a task delivers.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindThankYou Kind = "thank_you"
)

// Status tracks the lifecycle of a task. Only pending is non-terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusSkipped || s == StatusFailed
}

// Task is one scheduled notification for a booking.
type Task struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	Kind      Kind      `json:"kind"`
	// OffsetMinutes is minutes before the start for reminders and minutes
	// after the end for thank-you messages.
	OffsetMinutes int        `json:"offset_minutes"`
	SendAt        time.Time  `json:"send_at"`
	Status        Status     `json:"status"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DueTask is a pending task joined with what is needed to deliver it.
type DueTask struct {
	Task
	BookingStatus  string
	Date           string
	StartTime      string
	EndTime        string
	RecipientName  string
	RecipientEmail string
	ChildName      string
	ServiceTitle   string
}

// Outcome is the terminal state a dispatch attempt resolves a task to.
type Outcome struct {
	Status       Status
	ErrorMessage string
	SentAt       *time.Time
}

// StatusCount is one row of the admin stats breakdown.
type StatusCount struct {
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// NotifierError wraps a delivery failure for a task.
type NotifierError struct {
	TaskID uuid.UUID
	Kind   Kind
	Err    error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("notify %s task %s: %v", e.Kind, e.TaskID, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }
