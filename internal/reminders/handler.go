package reminders

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Runner is the dispatch entry point the cron endpoint calls.
type Runner interface {
	RunDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// Handler serves the cron trigger and the admin reminder views.
type Handler struct {
	runner     Runner
	store      *Store
	batchLimit int
	now        func() time.Time
	logger     *logging.Logger
}

// NewHandler creates a reminders handler.
func NewHandler(runner Runner, store *Store, batchLimit int, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{runner: runner, store: store, batchLimit: batchLimit, now: time.Now, logger: logger}
}

// RunReminders handles POST /cron/reminders and its GET alias.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	processed, err := h.runner.RunDue(r.Context(), h.now(), h.batchLimit)
	if err != nil {
		h.logger.Error("reminder dispatch failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "dispatch failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "processed": processed})
}

// ListForBooking handles GET /admin/bookings/{bookingID}/reminders.
func (h *Handler) ListForBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, `{"error": "invalid booking id"}`, http.StatusBadRequest)
		return
	}
	tasks, err := h.store.ListByBooking(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list reminder tasks", "booking_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Stats handles GET /admin/reminders/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count reminder tasks", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = []StatusCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
