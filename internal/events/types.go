package events

import "time"

const (
	TypeBookingCreated       = "booking.created.v1"
	TypeBookingStatusChanged = "booking.status_changed.v1"
)

// BookingCreatedV1 is emitted in the same transaction that inserts the booking.
type BookingCreatedV1 struct {
	BookingID     string    `json:"booking_id"`
	ServiceID     string    `json:"service_id"`
	ServiceTitle  string    `json:"service_title,omitempty"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Status        string    `json:"status"`
	ReminderTasks int       `json:"reminder_tasks"`
	CreatedAt     time.Time `json:"created_at"`
}

func (BookingCreatedV1) EventType() string { return TypeBookingCreated }

// BookingStatusChangedV1 is emitted when an admin moves a booking between statuses.
type BookingStatusChangedV1 struct {
	BookingID string    `json:"booking_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

func (BookingStatusChangedV1) EventType() string { return TypeBookingStatusChanged }
