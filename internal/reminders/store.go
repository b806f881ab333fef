package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxBatchLimit caps how many tasks one dispatch run selects.
const MaxBatchLimit = 50

// Execer is satisfied by pgx pools and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB abstracts the pgx pool for testing.
type DB interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists reminder tasks.
type Store struct {
	db DB
}

// NewStore creates a new reminder task store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// InsertTasks writes tasks through exec, normally the booking transaction.
func InsertTasks(ctx context.Context, exec Execer, tasks []Task) error {
	now := time.Now().UTC()
	for i := range tasks {
		t := &tasks[i]
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.Status == "" {
			t.Status = StatusPending
		}
		t.CreatedAt = now
		t.UpdatedAt = now
		_, err := exec.Exec(ctx, `
			INSERT INTO reminder_tasks (id, booking_id, kind, offset_minutes, send_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.ID, t.BookingID, string(t.Kind), t.OffsetMinutes, t.SendAt, string(t.Status), t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("reminders: insert task: %w", err)
		}
	}
	return nil
}

// ClampLimit bounds a batch size to [1, MaxBatchLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxBatchLimit {
		return MaxBatchLimit
	}
	return limit
}

// ListDue returns pending tasks with send_at <= asOf, oldest first, joined
// with their booking and service.
func (s *Store) ListDue(ctx context.Context, asOf time.Time, limit int) ([]DueTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.booking_id, t.kind, t.offset_minutes, t.send_at, t.status,
			b.status, to_char(b.date, 'YYYY-MM-DD'), b.start_time, b.end_time,
			b.name, b.email, COALESCE(b.child_name, ''), s.title
		FROM reminder_tasks t
		JOIN bookings b ON b.id = t.booking_id
		JOIN services s ON s.id = b.service_id
		WHERE t.status = 'pending' AND t.send_at <= $1
		ORDER BY t.send_at ASC
		LIMIT $2`, asOf, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	defer rows.Close()

	var out []DueTask
	for rows.Next() {
		var d DueTask
		var kind, status string
		if err := rows.Scan(&d.ID, &d.BookingID, &kind, &d.OffsetMinutes, &d.SendAt, &status,
			&d.BookingStatus, &d.Date, &d.StartTime, &d.EndTime,
			&d.RecipientName, &d.RecipientEmail, &d.ChildName, &d.ServiceTitle); err != nil {
			return nil, fmt.Errorf("reminders: scan due task: %w", err)
		}
		d.Kind = Kind(kind)
		d.Status = Status(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: iterate due tasks: %w", err)
	}
	return out, nil
}

// Resolve locks a pending task, asks decide for its outcome and records it in
// one transaction. decide receives the booking status read under the lock, so
// a cancellation committed after ListDue is still seen. It returns false
// without calling decide when the task is locked by a concurrent run or is no
// longer pending.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID, decide func(ctx context.Context, bookingStatus string) Outcome) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("reminders: begin resolve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The share lock on the booking blocks a concurrent status change until
	// the outcome is recorded.
	var status, bookingStatus string
	err = tx.QueryRow(ctx, `
		SELECT t.status, b.status
		FROM reminder_tasks t
		JOIN bookings b ON b.id = t.booking_id
		WHERE t.id = $1
		FOR UPDATE OF t SKIP LOCKED
		FOR SHARE OF b`, id).Scan(&status, &bookingStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reminders: lock task: %w", err)
	}
	if Status(status) != StatusPending {
		return false, nil
	}

	out := decide(ctx, bookingStatus)
	if !out.Status.Terminal() {
		return false, fmt.Errorf("reminders: outcome %q is not terminal", out.Status)
	}
	var errMsg *string
	if out.ErrorMessage != "" {
		errMsg = &out.ErrorMessage
	}
	tag, err := tx.Exec(ctx, `
		UPDATE reminder_tasks
		SET status = $2, error_message = $3, sent_at = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'`,
		id, string(out.Status), errMsg, out.SentAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reminders: record outcome: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("reminders: commit outcome: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByBooking returns every task of a booking, ordered by send time.
func (s *Store) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, kind, offset_minutes, send_at, status, error_message, sent_at, created_at, updated_at
		FROM reminder_tasks
		WHERE booking_id = $1
		ORDER BY send_at ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reminders: list by booking: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListAll returns every task ordered by send time. Used by backups.
func (s *Store) ListAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, kind, offset_minutes, send_at, status, error_message, sent_at, created_at, updated_at
		FROM reminder_tasks
		ORDER BY send_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("reminders: list all: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CountByStatus aggregates tasks per kind and status.
func (s *Store) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, status, COUNT(*)
		FROM reminder_tasks
		GROUP BY kind, status
		ORDER BY kind, status`)
	if err != nil {
		return nil, fmt.Errorf("reminders: count by status: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var kind, status string
		var c StatusCount
		if err := rows.Scan(&kind, &status, &c.Count); err != nil {
			return nil, fmt.Errorf("reminders: scan count: %w", err)
		}
		c.Kind = Kind(kind)
		c.Status = Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTasks(rows pgx.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		var t Task
		var kind, status string
		if err := rows.Scan(&t.ID, &t.BookingID, &kind, &t.OffsetMinutes, &t.SendAt, &status,
			&t.ErrorMessage, &t.SentAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan task: %w", err)
		}
		t.Kind = Kind(kind)
		t.Status = Status(status)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: iterate tasks: %w", err)
	}
	return out, nil
}
