package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/shopspring/decimal"
)

// SupplierStore defines the database methods needed by supplier handlers.
// Satisfied by *database.Queries.
type SupplierStore interface {
	ListSuppliers(ctx context.Context) ([]database.Supplier, error)
	GetSupplier(ctx context.Context, id int64) (database.Supplier, error)
	CreateSupplier(ctx context.Context, arg database.CreateSupplierParams) (database.Supplier, error)
}

// SupplierHandler handles supplier CRUD endpoints.
type SupplierHandler struct {
	store SupplierStore
}

// NewSupplierHandler creates a new SupplierHandler.
func NewSupplierHandler(store SupplierStore) *SupplierHandler {
	return &SupplierHandler{store: store}
}

// RegisterRoutes registers supplier endpoints on the given Chi router.
func (h *SupplierHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type createSupplierRequest struct {
	Name               string `json:"name"`
	AddressLine1       string `json:"address_line1"`
	AddressLine2       string `json:"address_line2"`
	TaxID              string `json:"tax_id"`
	DefaultDescription string `json:"default_description"`
	DefaultUnitPrice   string `json:"default_unit_price"`
}

type supplierResponse struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	AddressLine1       *string `json:"address_line1"`
	AddressLine2       *string `json:"address_line2"`
	TaxID              *string `json:"tax_id"`
	DefaultDescription *string `json:"default_description"`
	DefaultUnitPrice   *string `json:"default_unit_price"`
	CreatedAt          string  `json:"created_at"`
}

func toSupplierResponse(s database.Supplier) supplierResponse {
	resp := supplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if s.AddressLine1.Valid {
		resp.AddressLine1 = &s.AddressLine1.String
	}
	if s.AddressLine2.Valid {
		resp.AddressLine2 = &s.AddressLine2.String
	}
	if s.TaxID.Valid {
		resp.TaxID = &s.TaxID.String
	}
	if s.DefaultDescription.Valid {
		resp.DefaultDescription = &s.DefaultDescription.String
	}
	if s.DefaultUnitPrice.Valid {
		v := numericToString(s.DefaultUnitPrice)
		resp.DefaultUnitPrice = &v
	}
	return resp
}

// --- Handlers ---

// List handles GET /suppliers.
func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.store.ListSuppliers(r.Context())
	if err != nil {
		log.Printf("ERROR: list suppliers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]supplierResponse, len(suppliers))
	for i, s := range suppliers {
		resp[i] = toSupplierResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /suppliers.
func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	params := database.CreateSupplierParams{Name: req.Name}
	if req.AddressLine1 != "" {
		params.AddressLine1 = pgtype.Text{String: req.AddressLine1, Valid: true}
	}
	if req.AddressLine2 != "" {
		params.AddressLine2 = pgtype.Text{String: req.AddressLine2, Valid: true}
	}
	if req.TaxID != "" {
		params.TaxID = pgtype.Text{String: req.TaxID, Valid: true}
	}
	if req.DefaultDescription != "" {
		params.DefaultDescription = pgtype.Text{String: req.DefaultDescription, Valid: true}
	}
	if req.DefaultUnitPrice != "" {
		price, err := decimal.NewFromString(req.DefaultUnitPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid default_unit_price"})
			return
		}
		params.DefaultUnitPrice = decimalToNumeric(price)
	}

	supplier, err := h.store.CreateSupplier(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "supplier with this tax ID already exists"})
			return
		}
		log.Printf("ERROR: create supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toSupplierResponse(supplier))
}

// Get handles GET /suppliers/{id}.
func (h *SupplierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier ID"})
		return
	}

	supplier, err := h.store.GetSupplier(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supplier not found"})
			return
		}
		log.Printf("ERROR: get supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSupplierResponse(supplier))
}
