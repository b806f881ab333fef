package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SettingsStore is the persistence the handler needs.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Set(ctx context.Context, settings *Settings) error
}

// Handler provides HTTP endpoints for clinic settings management.
type Handler struct {
	store  SettingsStore
	logger *logging.Logger
}

// NewHandler creates a new clinic settings HTTP handler.
func NewHandler(store SettingsStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Routes returns a chi router with the settings routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetSettings)
	r.Put("/", h.UpdateSettings)
	return r
}

// GetSettings returns the clinic settings.
// GET /admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get clinic settings", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "error", err)
	}
}

// UpdateSettingsRequest is the request body for a partial settings update.
type UpdateSettingsRequest struct {
	Name            *string                    `json:"name,omitempty"`
	Email           *string                    `json:"email,omitempty"`
	Phone           *string                    `json:"phone,omitempty"`
	UTCOffset       *string                    `json:"utc_offset,omitempty"`
	BusinessHours   *BusinessHours             `json:"business_hours,omitempty"`
	SlotStepMinutes *int                       `json:"slot_step_minutes,omitempty"`
	Reminders       *ReminderPrefs             `json:"reminders,omitempty"`
	Backup          *schedule.RecurrencePolicy `json:"backup,omitempty"`
}

func (req UpdateSettingsRequest) apply(s *Settings) {
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Email != nil {
		s.Email = *req.Email
	}
	if req.Phone != nil {
		s.Phone = *req.Phone
	}
	if req.UTCOffset != nil {
		s.UTCOffset = *req.UTCOffset
	}
	if req.BusinessHours != nil {
		s.BusinessHours = *req.BusinessHours
	}
	if req.SlotStepMinutes != nil {
		s.SlotStepMinutes = *req.SlotStepMinutes
	}
	if req.Reminders != nil {
		s.Reminders = *req.Reminders
	}
	if req.Backup != nil {
		// The last run is owned by the backup job.
		lastRun := s.Backup.LastRunAt
		s.Backup = *req.Backup
		s.Backup.LastRunAt = lastRun
	}
}

// UpdateSettings applies a partial update to the clinic settings.
// PUT /admin/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to get clinic settings", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	req.apply(settings)

	if err := h.store.Set(r.Context(), settings); err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("failed to save clinic settings", "error", err)
		http.Error(w, `{"error": "failed to save settings"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic settings updated", "clinic_id", settings.ClinicID, "utc_offset", settings.UTCOffset)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "error", err)
	}
}
