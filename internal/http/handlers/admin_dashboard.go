// Package handlers holds the admin read models served over database/sql.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var activeStatuses = []string{"pending", "confirmed"}

// AdminDashboardHandler serves the clinic overview for staff.
type AdminDashboardHandler struct {
	db         *sql.DB
	clinicName string
	loc        *time.Location
	now        func() time.Time
	logger     *logging.Logger
}

// NewAdminDashboardHandler creates a new admin dashboard handler. loc is the
// clinic's fixed offset used to pick "today".
func NewAdminDashboardHandler(db *sql.DB, clinicName string, loc *time.Location, logger *logging.Logger) *AdminDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminDashboardHandler{db: db, clinicName: clinicName, loc: loc, now: time.Now, logger: logger}
}

// DashboardOverviewResponse contains the main dashboard metrics.
type DashboardOverviewResponse struct {
	ClinicName     string          `json:"clinic_name"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Bookings       BookingMetrics  `json:"bookings"`
	Reminders      ReminderMetrics `json:"reminders"`
	PendingActions []PendingAction `json:"pending_actions"`
}

// BookingMetrics counts bookings in the period by status.
type BookingMetrics struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	Upcoming  int `json:"upcoming"`
}

// ReminderMetrics counts reminder tasks of the period's bookings by status.
type ReminderMetrics struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Overdue int `json:"overdue"`
}

// PendingAction represents an action requiring staff attention.
type PendingAction struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Link        string `json:"link,omitempty"`
}

// GetDashboardOverview returns the overview for [from, to], defaulting to
// today and the following six days.
// GET /admin/dashboard?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AdminDashboardHandler) GetDashboardOverview(w http.ResponseWriter, r *http.Request) {
	today := h.now().In(h.loc).Format(schedule.DateLayout)
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = today
	}
	fromDate, err := schedule.ParseDate(from)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
		return
	}
	if to == "" {
		to = fromDate.AddDate(0, 0, 6).Format(schedule.DateLayout)
	}
	toDate, err := schedule.ParseDate(to)
	if err != nil || toDate.Before(fromDate) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD on or after from"})
		return
	}

	ctx := r.Context()
	dashboard := DashboardOverviewResponse{ClinicName: h.clinicName, From: from, To: to}

	bookingCounts, err := h.countByStatus(ctx,
		`SELECT status, COUNT(*) FROM bookings WHERE date BETWEEN $1 AND $2 GROUP BY status`, from, to)
	if err != nil {
		h.fail(w, "booking counts", err)
		return
	}
	dashboard.Bookings.Pending = bookingCounts["pending"]
	dashboard.Bookings.Confirmed = bookingCounts["confirmed"]
	dashboard.Bookings.Cancelled = bookingCounts["cancelled"]
	dashboard.Bookings.Total = dashboard.Bookings.Pending + dashboard.Bookings.Confirmed + dashboard.Bookings.Cancelled

	if err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE date >= $1 AND status = ANY($2)`, today, pq.Array(activeStatuses),
	).Scan(&dashboard.Bookings.Upcoming); err != nil {
		h.fail(w, "upcoming bookings", err)
		return
	}

	taskCounts, err := h.countByStatus(ctx,
		`SELECT t.status, COUNT(*) FROM reminder_tasks t
		 JOIN bookings b ON b.id = t.booking_id
		 WHERE b.date BETWEEN $1 AND $2
		 GROUP BY t.status`, from, to)
	if err != nil {
		h.fail(w, "reminder counts", err)
		return
	}
	dashboard.Reminders.Pending = taskCounts["pending"]
	dashboard.Reminders.Sent = taskCounts["sent"]
	dashboard.Reminders.Skipped = taskCounts["skipped"]
	dashboard.Reminders.Failed = taskCounts["failed"]

	if err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_tasks WHERE status = 'pending' AND send_at < $1`, h.now().Add(-15*time.Minute),
	).Scan(&dashboard.Reminders.Overdue); err != nil {
		h.fail(w, "overdue reminders", err)
		return
	}

	dashboard.PendingActions = pendingActions(dashboard)
	writeJSON(w, http.StatusOK, dashboard)
}

func pendingActions(d DashboardOverviewResponse) []PendingAction {
	actions := []PendingAction{}
	if d.Bookings.Pending > 0 {
		actions = append(actions, PendingAction{
			Type:        "booking",
			Priority:    "medium",
			Description: "Bookings awaiting confirmation",
			Count:       d.Bookings.Pending,
			Link:        "/admin/bookings?date=" + d.From,
		})
	}
	if d.Reminders.Failed > 0 {
		actions = append(actions, PendingAction{
			Type:        "reminder",
			Priority:    "high",
			Description: "Reminder emails that failed to send",
			Count:       d.Reminders.Failed,
			Link:        "/admin/reminders/failed",
		})
	}
	if d.Reminders.Overdue > 0 {
		actions = append(actions, PendingAction{
			Type:        "dispatch",
			Priority:    "high",
			Description: "Reminders past their send time; check the cron trigger",
			Count:       d.Reminders.Overdue,
		})
	}
	return actions
}

// ReminderIssue is a reminder task that did not send.
type ReminderIssue struct {
	TaskID       string    `json:"task_id"`
	BookingID    string    `json:"booking_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	Email        string    `json:"email"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListReminderIssues returns the most recent failed (and optionally skipped) tasks.
// GET /admin/reminders/failed?include_skipped=true&limit=50
func (h *AdminDashboardHandler) ListReminderIssues(w http.ResponseWriter, r *http.Request) {
	statuses := []string{"failed"}
	if r.URL.Query().Get("include_skipped") == "true" {
		statuses = append(statuses, "skipped")
	}
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT t.id, t.booking_id, t.kind, t.status, t.error_message,
		       to_char(b.date, 'YYYY-MM-DD'), b.start_time, b.email, t.updated_at
		FROM reminder_tasks t
		JOIN bookings b ON b.id = t.booking_id
		WHERE t.status = ANY($1)
		ORDER BY t.updated_at DESC
		LIMIT $2`, pq.Array(statuses), limit)
	if err != nil {
		h.fail(w, "reminder issues", err)
		return
	}
	defer rows.Close()

	issues := []ReminderIssue{}
	for rows.Next() {
		var it ReminderIssue
		var errMsg sql.NullString
		if err := rows.Scan(&it.TaskID, &it.BookingID, &it.Kind, &it.Status, &errMsg,
			&it.Date, &it.StartTime, &it.Email, &it.UpdatedAt); err != nil {
			h.fail(w, "scan reminder issue", err)
			return
		}
		if errMsg.Valid {
			it.ErrorMessage = &errMsg.String
		}
		issues = append(issues, it)
	}
	if err := rows.Err(); err != nil {
		h.fail(w, "iterate reminder issues", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues, "total": len(issues)})
}

func (h *AdminDashboardHandler) countByStatus(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (h *AdminDashboardHandler) fail(w http.ResponseWriter, what string, err error) {
	h.logger.Error("admin dashboard query failed", "query", what, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
