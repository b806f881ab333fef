package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Stats summarises booking and reminder activity for a period.
type Stats struct {
	ClinicID          string `json:"clinic_id"`
	BookingsCreated   int64  `json:"bookings_created"`
	BookingsConfirmed int64  `json:"bookings_confirmed"`
	BookingsCancelled int64  `json:"bookings_cancelled"`
	RemindersSent     int64  `json:"reminders_sent"`
	RemindersFailed   int64  `json:"reminders_failed"`
	PeriodStart       string `json:"period_start"`
	PeriodEnd         string `json:"period_end"`
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries clinic metrics from the database.
type StatsRepository struct {
	db       statsDB
	clinicID string
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool, clinicID string) *StatsRepository {
	if pool == nil {
		panic("clinic: pgx pool required for stats")
	}
	return &StatsRepository{db: pool, clinicID: clinicID}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB, clinicID string) *StatsRepository {
	return &StatsRepository{db: db, clinicID: clinicID}
}

// GetStats retrieves aggregated counts. With nil start/end it returns all-time stats.
func (r *StatsRepository) GetStats(ctx context.Context, start, end *time.Time) (*Stats, error) {
	stats := &Stats{ClinicID: r.clinicID}

	var (
		bookingFilter  string
		reminderFilter string
		args           []any
	)
	if start != nil && end != nil {
		bookingFilter = " AND created_at >= $1 AND created_at < $2"
		reminderFilter = " AND updated_at >= $1 AND updated_at < $2"
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	queries := []struct {
		name string
		sql  string
		dest *int64
	}{
		{"bookings created", `SELECT COUNT(*) FROM bookings WHERE TRUE` + bookingFilter, &stats.BookingsCreated},
		{"bookings confirmed", `SELECT COUNT(*) FROM bookings WHERE status = 'confirmed'` + bookingFilter, &stats.BookingsConfirmed},
		{"bookings cancelled", `SELECT COUNT(*) FROM bookings WHERE status = 'cancelled'` + bookingFilter, &stats.BookingsCancelled},
		{"reminders sent", `SELECT COUNT(*) FROM reminder_tasks WHERE status = 'sent'` + reminderFilter, &stats.RemindersSent},
		{"reminders failed", `SELECT COUNT(*) FROM reminder_tasks WHERE status = 'failed'` + reminderFilter, &stats.RemindersFailed},
	}
	for _, q := range queries {
		if err := r.db.QueryRow(ctx, q.sql, args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("clinic stats: %s: %w", q.name, err)
		}
	}
	return stats, nil
}

// StatsHandler provides HTTP endpoints for clinic statistics.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{
		repo:   repo,
		logger: logger,
	}
}

// GetStats returns aggregated counts.
// GET /admin/stats
// Query params:
//   - start: RFC3339 timestamp for period start (optional)
//   - end: RFC3339 timestamp for period end (optional)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, `{"error": "invalid start time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			http.Error(w, `{"error": "invalid end time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}

	if (start == nil) != (end == nil) {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to get clinic stats", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode clinic stats", "error", err)
	}
}
