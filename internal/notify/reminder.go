package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SettingsProvider returns the current clinic settings.
type SettingsProvider interface {
	Get(ctx context.Context) (*clinic.Settings, error)
}

// ReminderNotifier renders reminder and thank-you emails. The clinic's
// toggles are read at send time, so disabling a channel also stops tasks
// that were scheduled before the change.
type ReminderNotifier struct {
	email    EmailSender
	settings SettingsProvider
	logger   *logging.Logger
}

// NewReminderNotifier creates a notifier. A nil sender disables delivery.
func NewReminderNotifier(email EmailSender, settings SettingsProvider, logger *logging.Logger) *ReminderNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderNotifier{email: email, settings: settings, logger: logger}
}

// Notify sends the message for kind. It returns false when the channel is off.
func (n *ReminderNotifier) Notify(ctx context.Context, kind reminders.Kind, d reminders.Delivery) (bool, error) {
	if n.email == nil {
		return false, nil
	}
	var s *clinic.Settings
	if n.settings != nil {
		var err error
		s, err = n.settings.Get(ctx)
		if err != nil {
			return false, fmt.Errorf("notify: load settings: %w", err)
		}
		if !channelEnabled(s, kind) {
			n.logger.Debug("notify: channel disabled", "kind", kind, "task_id", d.TaskID)
			return false, nil
		}
	}

	msg, err := render(kind, d, s)
	if err != nil {
		return false, err
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

func channelEnabled(s *clinic.Settings, kind reminders.Kind) bool {
	switch kind {
	case reminders.KindReminder:
		return s.Reminders.EnableReminders
	case reminders.KindThankYou:
		return s.Reminders.EnableThankYou
	default:
		return false
	}
}

func render(kind reminders.Kind, d reminders.Delivery, s *clinic.Settings) (EmailMessage, error) {
	clinicName := "the clinic"
	contact := ""
	if s != nil {
		if s.Name != "" {
			clinicName = s.Name
		}
		switch {
		case s.Phone != "" && s.Email != "":
			contact = fmt.Sprintf("%s or %s", s.Phone, s.Email)
		case s.Phone != "":
			contact = s.Phone
		case s.Email != "":
			contact = s.Email
		}
	}

	when := d.Date
	if date, err := schedule.ParseDate(d.Date); err == nil {
		when = date.Format("Monday, January 2")
	}
	who := d.RecipientName
	if who == "" {
		who = "there"
	}
	service := d.ServiceTitle
	if service == "" {
		service = "appointment"
	}
	child := ""
	if d.ChildName != "" {
		child = " for " + d.ChildName
	}

	var subject string
	var lines []string
	switch kind {
	case reminders.KindReminder:
		subject = fmt.Sprintf("Reminder: %s on %s at %s", service, when, d.StartTime)
		lines = []string{
			fmt.Sprintf("Hi %s,", who),
			fmt.Sprintf("This is a reminder of your %s%s at %s on %s from %s to %s.", service, child, clinicName, when, d.StartTime, d.EndTime),
		}
		if contact != "" {
			lines = append(lines, fmt.Sprintf("If you need to reschedule, contact us at %s.", contact))
		}
	case reminders.KindThankYou:
		subject = fmt.Sprintf("Thank you for visiting %s", clinicName)
		lines = []string{
			fmt.Sprintf("Hi %s,", who),
			fmt.Sprintf("Thank you for coming to your %s%s on %s. We hope to see you again soon.", service, child, when),
		}
		if contact != "" {
			lines = append(lines, fmt.Sprintf("Questions? Reach us at %s.", contact))
		}
	default:
		return EmailMessage{}, fmt.Errorf("notify: unknown reminder kind %q", kind)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(l))
		b.WriteString("</p>")
	}
	return EmailMessage{
		To:      d.RecipientEmail,
		ToName:  d.RecipientName,
		Subject: subject,
		Body:    strings.Join(lines, "\n\n"),
		HTML:    b.String(),
	}, nil
}

var _ reminders.Notifier = (*ReminderNotifier)(nil)
