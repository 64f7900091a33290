package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lengolf/ledger-api/internal/database"
)

// SettingsStore defines the database methods needed by settings handlers.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]database.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) (database.Setting, error)
}

// SettingsHandler handles business settings endpoints.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Update)
}

// List handles GET /settings. Settings are returned as a flat key/value map.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		log.Printf("ERROR: list settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make(map[string]string, len(settings))
	for _, s := range settings {
		resp[s.Key] = s.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /settings. The body is a key/value map; each pair is
// upserted. Empty keys are rejected, empty values are allowed (they clear
// a setting).
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no settings provided"})
		return
	}
	for key := range req {
		if key == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "setting key must not be empty"})
			return
		}
	}

	for key, value := range req {
		if _, err := h.store.UpsertSetting(r.Context(), key, value); err != nil {
			log.Printf("ERROR: upsert setting %q: %v", key, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		log.Printf("ERROR: list settings after update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make(map[string]string, len(settings))
	for _, s := range settings {
		resp[s.Key] = s.Value
	}
	writeJSON(w, http.StatusOK, resp)
}
