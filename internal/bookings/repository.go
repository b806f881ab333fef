package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// Postgres error codes mapped to ConflictError.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

const bookingColumns = `id, service_id, to_char(date, 'YYYY-MM-DD'), start_time, end_time, status,
	name, email, phone, child_name, child_age, notes, created_at, updated_at`

// Execer is the write handle passed to transaction hooks.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AfterInsertFunc runs inside the booking transaction after the insert.
type AfterInsertFunc func(ctx context.Context, tx Execer, b *Booking) error

// StatusChangeFunc runs inside the transaction after a status update.
type StatusChangeFunc func(ctx context.Context, tx Execer, prev Status, b *Booking) error

// DB abstracts the pgx pool for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for bookings.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool or mock.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

// Create re-checks the candidate against the locked bookings of its date and
// inserts it in one transaction. Writers for the same date are serialised by
// a transaction-scoped advisory lock so the check also holds on empty days.
func (r *Repository) Create(ctx context.Context, b *Booking, after AfterInsertFunc) error {
	date, err := schedule.ParseDate(b.Date)
	if err != nil {
		return err
	}
	candidate, err := b.Interval()
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := lockDate(ctx, tx, b.Date, date)
	if err != nil {
		return err
	}
	if err := AssertNoConflict(b.Date, existing, candidate); err != nil {
		return err
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, service_id, date, start_time, end_time, status, name, email, phone, child_name, child_age, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.ServiceID, date, b.StartTime, b.EndTime, string(b.Status),
		b.Name, b.Email, b.Phone, b.ChildName, b.ChildAge, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isConflictViolation(err) {
			return &ConflictError{Date: b.Date, Start: b.StartTime, End: b.EndTime}
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}

	if after != nil {
		if err := after(ctx, tx, b); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if isConflictViolation(err) {
			return &ConflictError{Date: b.Date, Start: b.StartTime, End: b.EndTime}
		}
		return fmt.Errorf("bookings: commit: %w", err)
	}
	return nil
}

// Get loads a booking by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}

// ListByDate returns every booking of a date ordered by start time.
func (r *Repository) ListByDate(ctx context.Context, day string) ([]Booking, error) {
	date, err := schedule.ParseDate(day)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE date = $1 ORDER BY start_time ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("bookings: list by date: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListAll returns every booking ordered by date and start time. Used by backups.
func (r *Repository) ListAll(ctx context.Context) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY date ASC, start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("bookings: list all: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// UpdateStatus moves a booking to status. Reactivating a cancelled booking
// re-runs the conflict check under the date lock.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, after StatusChangeFunc) (*Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: lock booking: %w", err)
	}
	prev := b.Status
	if prev == status {
		return b, nil
	}

	if !prev.Active() && status.Active() {
		date, err := schedule.ParseDate(b.Date)
		if err != nil {
			return nil, err
		}
		existing, err := lockDate(ctx, tx, b.Date, date)
		if err != nil {
			return nil, err
		}
		candidate, err := b.Interval()
		if err != nil {
			return nil, err
		}
		others := existing[:0]
		for _, e := range existing {
			if e.ID != b.ID {
				others = append(others, e)
			}
		}
		if err := AssertNoConflict(b.Date, others, candidate); err != nil {
			return nil, err
		}
	}

	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), b.UpdatedAt); err != nil {
		if isConflictViolation(err) {
			return nil, &ConflictError{Date: b.Date, Start: b.StartTime, End: b.EndTime}
		}
		return nil, fmt.Errorf("bookings: update status: %w", err)
	}
	if after != nil {
		if err := after(ctx, tx, prev, b); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit: %w", err)
	}
	return b, nil
}

// lockDate serialises writers of one date and returns its active bookings,
// row-locked until the transaction ends.
func lockDate(ctx context.Context, tx pgx.Tx, day string, date time.Time) ([]Booking, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "bookings:"+day); err != nil {
		return nil, fmt.Errorf("bookings: lock date: %w", err)
	}
	rows, err := tx.Query(ctx, `
		SELECT id, start_time, end_time, status
		FROM bookings
		WHERE date = $1 AND status IN ('pending', 'confirmed')
		FOR UPDATE`, date)
	if err != nil {
		return nil, fmt.Errorf("bookings: load date: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b := Booking{Date: day}
		var status string
		if err := rows.Scan(&b.ID, &b.StartTime, &b.EndTime, &status); err != nil {
			return nil, fmt.Errorf("bookings: scan locked: %w", err)
		}
		b.Status = Status(status)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate locked: %w", err)
	}
	return out, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	if err := row.Scan(&b.ID, &b.ServiceID, &b.Date, &b.StartTime, &b.EndTime, &status,
		&b.Name, &b.Email, &b.Phone, &b.ChildName, &b.ChildAge, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}

func isConflictViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation || pgErr.Code == pgExclusionViolation
}
