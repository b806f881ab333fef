// Package catalog exposes the clinic's bookable services. Services are owned by
// the content admin; this package only reads them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a service does not exist or is inactive.
var ErrNotFound = errors.New("catalog: service not found")

// Service is a bookable appointment type.
type Service struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"durationMinutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads services.
type Store struct {
	db DB
}

// NewStore creates a new catalog store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Get returns an active service by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Service, error) {
	var svc Service
	err := s.db.QueryRow(ctx, `
		SELECT id, title, duration_minutes, active, created_at
		FROM services
		WHERE id = $1 AND active`, id).
		Scan(&svc.ID, &svc.Title, &svc.DurationMinutes, &svc.Active, &svc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service: %w", err)
	}
	if svc.DurationMinutes <= 0 {
		return nil, fmt.Errorf("catalog: service %s has non-positive duration %d", svc.ID, svc.DurationMinutes)
	}
	return &svc, nil
}

// ListActive returns active services ordered by title.
func (s *Store) ListActive(ctx context.Context) ([]Service, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, duration_minutes, active, created_at
		FROM services
		WHERE active
		ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Title, &svc.DurationMinutes, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return out, nil
}
