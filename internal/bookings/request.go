package bookings

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// CreateRequest is the public booking form.
type CreateRequest struct {
	ServiceID string  `json:"serviceId"`
	Date      string  `json:"date"`
	StartTime string  `json:"startTime"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	ChildName *string `json:"childName,omitempty"`
	ChildAge  *int    `json:"childAge,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

const (
	maxNameLen  = 120
	maxNotesLen = 2000
	maxChildAge = 18
)

// Normalize trims whitespace from every text field.
func (r *CreateRequest) Normalize() {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.Date = strings.TrimSpace(r.Date)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	for _, p := range []**string{&r.ChildName, &r.Notes} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" {
			*p = nil
			continue
		}
		*p = &v
	}
}

// Validate returns a ValidationError listing every bad field, or nil.
func (r *CreateRequest) Validate() error {
	errs := map[string]string{}

	if _, err := uuid.Parse(r.ServiceID); err != nil {
		errs["serviceId"] = "must be a valid service id"
	}
	if _, err := schedule.ParseDate(r.Date); err != nil {
		errs["date"] = "must be a date in YYYY-MM-DD format"
	}
	if _, err := schedule.ParseClock(r.StartTime); err != nil {
		errs["startTime"] = "must be a time in HH:MM format"
	}
	switch {
	case r.Name == "":
		errs["name"] = "is required"
	case len(r.Name) > maxNameLen:
		errs["name"] = "is too long"
	}
	if r.Email == "" {
		errs["email"] = "is required"
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		errs["email"] = "must be a valid email address"
	}
	if !validPhone(r.Phone) {
		errs["phone"] = "must be a valid phone number"
	}
	if r.ChildAge != nil && (*r.ChildAge < 0 || *r.ChildAge > maxChildAge) {
		errs["childAge"] = "must be between 0 and 18"
	}
	if r.ChildName != nil && len(*r.ChildName) > maxNameLen {
		errs["childName"] = "is too long"
	}
	if r.Notes != nil && len(*r.Notes) > maxNotesLen {
		errs["notes"] = "is too long"
	}

	if len(errs) > 0 {
		return &ValidationError{FieldErrors: errs}
	}
	return nil
}

// validPhone accepts digits with optional leading + and common separators.
func validPhone(v string) bool {
	digits := 0
	for i, r := range v {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
