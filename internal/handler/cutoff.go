package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/ledger"
)

// CutoffRouter is the atomic read/swap surface over the active cutoff.
// Satisfied by *ledger.CutoffRouter.
type CutoffRouter interface {
	Active(ctx context.Context) (database.CutoffConfig, error)
	Set(ctx context.Context, date time.Time, reason string) (database.CutoffConfig, error)
}

// CutoffNotifier broadcasts cutoff changes. Satisfied by *ws.Hub.
type CutoffNotifier interface {
	NotifyCutoffChanged(cutoffDate, reason string)
}

// CutoffHistoryStore reads the versioned cutoff trail. Satisfied by
// *database.Queries.
type CutoffHistoryStore interface {
	ListCutoffHistory(ctx context.Context, limit int32) ([]database.CutoffConfig, error)
}

// CutoffHandler exposes the cutoff control surface.
type CutoffHandler struct {
	router   CutoffRouter
	syncer   Syncer
	notifier CutoffNotifier
	history  CutoffHistoryStore
}

// NewCutoffHandler creates a new CutoffHandler. notifier may be nil.
func NewCutoffHandler(router CutoffRouter, syncer Syncer, notifier CutoffNotifier, history CutoffHistoryStore) *CutoffHandler {
	return &CutoffHandler{router: router, syncer: syncer, notifier: notifier, history: history}
}

// RegisterRoutes registers cutoff endpoints on the given Chi router.
func (h *CutoffHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cutoff", h.Get)
	r.Put("/cutoff", h.Set)
	r.Get("/cutoff/history", h.History)
}

// --- Request / Response types ---

type setCutoffRequest struct {
	CutoffDate string `json:"cutoff_date"`
	Reason     string `json:"reason"`
}

type cutoffResponse struct {
	CutoffDate string `json:"cutoff_date"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"created_at"`
}

type setCutoffResponse struct {
	Cutoff  cutoffResponse `json:"cutoff"`
	Rebuild batchResponse  `json:"rebuild"`
}

func toCutoffResponse(c database.CutoffConfig) cutoffResponse {
	return cutoffResponse{
		CutoffDate: c.CutoffDate.Time.Format("2006-01-02"),
		Reason:     c.Reason,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// cutoffHistoryEntry includes the active flag so operators can tell the
// current boundary apart from superseded ones.
type cutoffHistoryEntry struct {
	CutoffDate string `json:"cutoff_date"`
	Reason     string `json:"reason"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

// --- Handlers ---

// Get handles GET /cutoff.
func (h *CutoffHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.router.Active(r.Context())
	if err != nil {
		if errors.Is(err, ledger.ErrCutoffNotConfigured) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active cutoff configured"})
			return
		}
		log.Printf("ERROR: get active cutoff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toCutoffResponse(cfg))
}

// History handles GET /cutoff/history?limit=N: cutoff rows newest
// first, superseded entries included.
func (h *CutoffHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	items, err := h.history.ListCutoffHistory(r.Context(), limit)
	if err != nil {
		log.Printf("ERROR: list cutoff history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cutoffHistoryEntry, len(items))
	for i, c := range items {
		resp[i] = cutoffHistoryEntry{
			CutoffDate: c.CutoffDate.Time.Format("2006-01-02"),
			Reason:     c.Reason,
			IsActive:   c.IsActive,
			CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Set handles PUT /cutoff: swaps the active cutoff and triggers the
// full rebuild a boundary move requires, since historical dates can be
// reclassified between sources. The rebuild's batch summary is returned
// alongside the new cutoff so operators see both outcomes at once.
func (h *CutoffHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setCutoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	date, err := time.Parse("2006-01-02", req.CutoffDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cutoff_date, expected YYYY-MM-DD"})
		return
	}

	cfg, err := h.router.Set(r.Context(), date, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrCutoffConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "another cutoff change is in progress"})
			return
		}
		log.Printf("ERROR: set cutoff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyCutoffChanged(cfg.CutoffDate.Time.Format("2006-01-02"), cfg.Reason)
	}

	batch, err := h.syncer.Sync(r.Context())
	if err != nil {
		log.Printf("ERROR: rebuild after cutoff change: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cutoff changed but rebuild could not start"})
		return
	}

	writeJSON(w, http.StatusOK, setCutoffResponse{
		Cutoff:  toCutoffResponse(cfg),
		Rebuild: toBatchResponse(batch),
	})
}
