package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Delivery is what a Notifier needs to render and send one message.
type Delivery struct {
	TaskID         uuid.UUID
	BookingID      uuid.UUID
	RecipientName  string
	RecipientEmail string
	ChildName      string
	ServiceTitle   string
	Date           string
	StartTime      string
	EndTime        string
	OffsetMinutes  int
}

// Notifier delivers a message for a task. It returns false with a nil error
// when the channel is disabled and nothing was sent.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, d Delivery) (bool, error)
}

// TaskStore is the persistence the worker needs.
type TaskStore interface {
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]DueTask, error)
	Resolve(ctx context.Context, id uuid.UUID, decide func(ctx context.Context, bookingStatus string) Outcome) (bool, error)
}

const (
	reasonBookingCancelled = "booking cancelled"
	reasonMissingEmail     = "recipient email missing"
	reasonChannelDisabled  = "notification channel disabled"
)

// Worker moves due tasks to a terminal state. It never schedules itself;
// an external trigger calls RunDue.
type Worker struct {
	store    TaskStore
	notifier Notifier
	metrics  *metrics.ReminderMetrics
	logger   *logging.Logger
}

// NewWorker creates a dispatch worker.
func NewWorker(store TaskStore, notifier Notifier, m *metrics.ReminderMetrics, logger *logging.Logger) *Worker {
	if store == nil || notifier == nil {
		panic("reminders: store and notifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{store: store, notifier: notifier, metrics: m, logger: logger}
}

// RunDue processes up to limit tasks due at now and returns how many were
// moved to a terminal state. A failure on one task does not stop the batch.
func (w *Worker) RunDue(ctx context.Context, now time.Time, limit int) (int, error) {
	limit = ClampLimit(limit)
	due, err := w.store.ListDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("reminders worker: list due: %w", err)
	}
	w.metrics.ObserveBatch(len(due))

	processed := 0
	for i := range due {
		task := due[i]
		var out Outcome
		ok, err := w.store.Resolve(ctx, task.ID, func(ctx context.Context, bookingStatus string) Outcome {
			out = w.decide(ctx, task, bookingStatus, now)
			return out
		})
		if err != nil {
			w.logger.Error("reminders worker: failed to resolve task", "task_id", task.ID, "error", err)
			continue
		}
		if !ok {
			w.logger.Debug("reminders worker: task already handled", "task_id", task.ID)
			continue
		}
		processed++
		w.metrics.ObserveDispatched(string(task.Kind), string(out.Status))
		w.logger.Info("reminders worker: task resolved",
			"task_id", task.ID,
			"booking_id", task.BookingID,
			"kind", task.Kind,
			"status", out.Status,
			"error_message", out.ErrorMessage,
		)
	}

	w.logger.Info("reminders worker: batch complete", "due", len(due), "processed", processed, "limit", limit)
	return processed, nil
}

// decide uses bookingStatus, read under the task lock, rather than the
// snapshot ListDue returned.
func (w *Worker) decide(ctx context.Context, task DueTask, bookingStatus string, now time.Time) Outcome {
	if strings.EqualFold(bookingStatus, "cancelled") {
		return Outcome{Status: StatusSkipped, ErrorMessage: reasonBookingCancelled}
	}
	if strings.TrimSpace(task.RecipientEmail) == "" {
		return Outcome{Status: StatusFailed, ErrorMessage: reasonMissingEmail}
	}

	sent, err := w.notifier.Notify(ctx, task.Kind, Delivery{
		TaskID:         task.ID,
		BookingID:      task.BookingID,
		RecipientName:  task.RecipientName,
		RecipientEmail: task.RecipientEmail,
		ChildName:      task.ChildName,
		ServiceTitle:   task.ServiceTitle,
		Date:           task.Date,
		StartTime:      task.StartTime,
		EndTime:        task.EndTime,
		OffsetMinutes:  task.OffsetMinutes,
	})
	if err != nil {
		nerr := &NotifierError{TaskID: task.ID, Kind: task.Kind, Err: err}
		return Outcome{Status: StatusFailed, ErrorMessage: nerr.Error()}
	}
	if !sent {
		return Outcome{Status: StatusSkipped, ErrorMessage: reasonChannelDisabled}
	}
	sentAt := now.UTC()
	return Outcome{Status: StatusSent, SentAt: &sentAt}
}
