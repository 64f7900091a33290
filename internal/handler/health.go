package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lengolf/ledger-api/internal/ledger"
)

// HealthMonitor computes the ledger health summary. Satisfied by
// *ledger.HealthMonitor.
type HealthMonitor interface {
	Summary(ctx context.Context, now time.Time) (*ledger.HealthSummary, error)
}

// HealthHandler exposes the read-only observability surface.
type HealthHandler struct {
	monitor HealthMonitor
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(monitor HealthMonitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// RegisterRoutes registers the health summary endpoint.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health-summary", h.Summary)
}

// Summary handles GET /health-summary.
func (h *HealthHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.monitor.Summary(r.Context(), time.Now())
	if err != nil {
		log.Printf("ERROR: health summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
