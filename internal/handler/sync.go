package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lengolf/ledger-api/internal/database"
)

// Syncer runs one full ledger sync. Satisfied by *ledger.Builder;
// narrow interface for testability.
type Syncer interface {
	Sync(ctx context.Context) (database.SyncBatch, error)
}

// BatchStore defines the DB methods needed to read batch history.
// Satisfied by *database.Queries.
type BatchStore interface {
	ListSyncBatches(ctx context.Context, limit int32) ([]database.SyncBatch, error)
}

// SyncHandler exposes the pipeline control surface.
type SyncHandler struct {
	syncer Syncer
	store  BatchStore
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncer Syncer, store BatchStore) *SyncHandler {
	return &SyncHandler{syncer: syncer, store: store}
}

// RegisterRoutes registers sync endpoints on the given Chi router.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sync", h.Trigger)
	r.Get("/batches", h.ListBatches)
}

// Trigger handles POST /sync: runs one pipeline invocation and returns
// the finalized batch summary. A failed batch is still a 200 with
// status "failed" - the run happened and was recorded; consumers
// inspect the summary, not the HTTP status.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	batch, err := h.syncer.Sync(r.Context())
	if err != nil {
		log.Printf("ERROR: trigger sync: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

// ListBatches handles GET /batches?limit=N.
func (h *SyncHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	batches, err := h.store.ListSyncBatches(r.Context(), limit)
	if err != nil {
		log.Printf("ERROR: list batches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]batchResponse, len(batches))
	for i, b := range batches {
		resp[i] = toBatchResponse(b)
	}
	writeJSON(w, http.StatusOK, resp)
}
