package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const conflictMessage = "This time is no longer available. Please choose another time."

// API is the service surface the handlers call.
type API interface {
	Availability(ctx context.Context, date, serviceID string) (availability.Result, error)
	Create(ctx context.Context, req CreateRequest) (*Created, error)
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByDate(ctx context.Context, date string) ([]Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Booking, error)
}

// Handler serves the public booking endpoints and the admin booking views.
type Handler struct {
	api    API
	logger *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(api API, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{api: api, logger: logger}
}

type slotJSON struct {
	Time        string `json:"time"`
	DisplayTime string `json:"displayTime"`
	Available   bool   `json:"available"`
}

type availabilityResponse struct {
	Slots   []slotJSON `json:"slots"`
	Message string     `json:"message,omitempty"`
}

// Availability handles GET /availability?date=&serviceId=.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.api.Availability(r.Context(), q.Get("date"), q.Get("serviceId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := availabilityResponse{Slots: make([]slotJSON, 0, len(res.Slots)), Message: res.Message}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, slotJSON{Time: s.Time(), DisplayTime: s.Label(), Available: true})
	}
	writeJSON(w, http.StatusOK, out)
}

type createdJSON struct {
	ID      uuid.UUID `json:"id"`
	Date    string    `json:"date"`
	Time    string    `json:"time"`
	Service string    `json:"service"`
}

// CreateBooking handles POST /bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"body": "must be a JSON object"}})
		return
	}
	created, err := h.api.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": createdJSON{
		ID:      created.Booking.ID,
		Date:    created.Booking.Date,
		Time:    created.Booking.StartTime,
		Service: created.Service.Title,
	}})
}

// ListBookings handles GET /admin/bookings?date=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.ListByDate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

// GetBooking handles GET /admin/bookings/{bookingID}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, `{"error": "invalid booking id"}`, http.StatusBadRequest)
		return
	}
	b, err := h.api.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /admin/bookings/{bookingID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, `{"error": "invalid booking id"}`, http.StatusBadRequest)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"status": "must be pending, confirmed or cancelled"}})
		return
	}
	b, err := h.api.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *ConflictError
	var validation *ValidationError
	var invalid *availability.InvalidInputError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    conflictMessage,
			"conflict": map[string]string{"date": conflict.Date, "start": conflict.Start, "end": conflict.End},
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": validation.FieldErrors})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{invalid.Field: invalid.Reason}})
	case errors.Is(err, schedule.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": strings.TrimPrefix(err.Error(), "schedule: ")})
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "booking not found"}`, http.StatusNotFound)
	default:
		h.logger.Error("bookings request failed", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
