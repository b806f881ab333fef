package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Handler serves the public service list for the booking form.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ListServices handles GET /services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list services", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if services == nil {
		services = []Service{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"services": services}); err != nil {
		h.logger.Error("failed to encode services", "error", err)
	}
}
