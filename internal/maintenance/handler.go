package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// BackupRunner is what the cron endpoint calls.
type BackupRunner interface {
	RunIfDue(ctx context.Context, now time.Time) (Result, error)
}

// Handler serves POST /cron/backup.
type Handler struct {
	runner BackupRunner
	now    func() time.Time
	logger *logging.Logger
}

// NewHandler creates a backup cron handler.
func NewHandler(runner BackupRunner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{runner: runner, now: time.Now, logger: logger}
}

// RunBackup handles POST /cron/backup and its GET alias.
func (h *Handler) RunBackup(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.RunIfDue(r.Context(), h.now())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		h.logger.Error("backup failed", "error", err, "due", res.Due)
		msg := "backup failed"
		if errors.Is(err, ErrArchiveDisabled) {
			msg = "backup bucket not configured"
		}
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "due": res.Due, "error": msg})
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Success bool `json:"success"`
		Result
	}{Success: true, Result: res})
}
