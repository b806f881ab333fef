// Package maintenance runs the clinic's scheduled backups.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/bookings"
	"github.com/wolfman30/clinic-scheduler/internal/clinic"
	"github.com/wolfman30/clinic-scheduler/internal/reminders"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SettingsStore reads the backup policy and records completed runs.
type SettingsStore interface {
	Get(ctx context.Context) (*clinic.Settings, error)
	RecordBackupRun(ctx context.Context, at time.Time) error
}

// BookingSource lists every booking.
type BookingSource interface {
	ListAll(ctx context.Context) ([]bookings.Booking, error)
}

// TaskSource lists every reminder task.
type TaskSource interface {
	ListAll(ctx context.Context) ([]reminders.Task, error)
}

// Snapshot is the JSON document written for each backup.
type Snapshot struct {
	ClinicID      string             `json:"clinic_id"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Bookings      []bookings.Booking `json:"bookings"`
	ReminderTasks []reminders.Task   `json:"reminder_tasks"`
}

// Result reports what a run did.
type Result struct {
	Due           bool   `json:"due"`
	Key           string `json:"key,omitempty"`
	Bookings      int    `json:"bookings"`
	ReminderTasks int    `json:"reminderTasks"`
}

// Runner exports bookings and reminder tasks when the backup policy is due.
type Runner struct {
	settings SettingsStore
	bookings BookingSource
	tasks    TaskSource
	archive  *Archive
	logger   *logging.Logger
}

// NewRunner creates a backup runner.
func NewRunner(settings SettingsStore, b BookingSource, t TaskSource, archive *Archive, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{settings: settings, bookings: b, tasks: t, archive: archive, logger: logger}
}

// RunIfDue checks the policy in the clinic's offset and, when due, writes a
// snapshot and records now as the last run. Manual policies are never due.
func (r *Runner) RunIfDue(ctx context.Context, now time.Time) (Result, error) {
	s, err := r.settings.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("maintenance: load settings: %w", err)
	}
	loc, err := s.Location()
	if err != nil {
		return Result{}, err
	}
	due, err := schedule.IsDue(s.Backup, now.In(loc))
	if err != nil {
		return Result{}, fmt.Errorf("maintenance: backup policy: %w", err)
	}
	if !due {
		return Result{}, nil
	}
	res, err := r.Run(ctx, s.ClinicID, now)
	if err != nil {
		return Result{Due: true}, err
	}
	res.Due = true
	return res, nil
}

// Run writes a snapshot unconditionally.
func (r *Runner) Run(ctx context.Context, clinicID string, now time.Time) (Result, error) {
	if !r.archive.Enabled() {
		return Result{}, ErrArchiveDisabled
	}
	list, err := r.bookings.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}
	tasks, err := r.tasks.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}
	if list == nil {
		list = []bookings.Booking{}
	}
	if tasks == nil {
		tasks = []reminders.Task{}
	}

	now = now.UTC()
	data, err := json.Marshal(Snapshot{ClinicID: clinicID, GeneratedAt: now, Bookings: list, ReminderTasks: tasks})
	if err != nil {
		return Result{}, fmt.Errorf("maintenance: marshal snapshot: %w", err)
	}
	key, err := r.archive.Put(ctx, now.Format("20060102T150405Z")+".json", data)
	if err != nil {
		return Result{}, err
	}
	res := Result{Key: key, Bookings: len(list), ReminderTasks: len(tasks)}

	if err := r.archive.AppendManifest(ctx, ManifestEntry{
		Key:           key,
		CreatedAt:     now.Format(time.RFC3339),
		Bookings:      len(list),
		ReminderTasks: len(tasks),
		Bytes:         len(data),
	}); err != nil && !errors.Is(err, ErrArchiveDisabled) {
		// The snapshot is already stored.
		r.logger.Warn("failed to append backup manifest", "error", err, "key", key)
	}

	if err := r.settings.RecordBackupRun(ctx, now); err != nil {
		return res, fmt.Errorf("maintenance: record run: %w", err)
	}
	r.logger.Info("backup completed", "key", key, "bookings", res.Bookings, "reminder_tasks", res.ReminderTasks)
	return res, nil
}
