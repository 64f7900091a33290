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
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/ledger"
	"github.com/shopspring/decimal"
)

// InvoiceStore defines the database methods needed by invoice handlers.
// Satisfied by *database.Queries (and its WithTx variant).
type InvoiceStore interface {
	GetSupplier(ctx context.Context, id int64) (database.Supplier, error)
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	CreateInvoiceItem(ctx context.Context, arg database.CreateInvoiceItemParams) (database.InvoiceItem, error)
	ListInvoices(ctx context.Context, limit int32) ([]database.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (database.Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceID int64) ([]database.InvoiceItem, error)
}

// NewInvoiceStore creates an InvoiceStore from a DBTX (pool or tx).
type NewInvoiceStore func(db database.DBTX) InvoiceStore

// InvoiceHandler handles withholding-tax invoice endpoints.
type InvoiceHandler struct {
	store    InvoiceStore
	pool     ledger.TxBeginner
	newStore NewInvoiceStore
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(store InvoiceStore, pool ledger.TxBeginner, newStore NewInvoiceStore) *InvoiceHandler {
	return &InvoiceHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers invoice endpoints on the given Chi router.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type createInvoiceItemRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type createInvoiceRequest struct {
	SupplierID    int64                      `json:"supplier_id"`
	InvoiceNumber string                     `json:"invoice_number"`
	InvoiceDate   string                     `json:"invoice_date"`
	WhtRate       string                     `json:"wht_rate"`
	Items         []createInvoiceItemRequest `json:"items"`
}

type invoiceItemResponse struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type invoiceResponse struct {
	ID            int64                 `json:"id"`
	SupplierID    int64                 `json:"supplier_id"`
	InvoiceNumber string                `json:"invoice_number"`
	InvoiceDate   string                `json:"invoice_date"`
	Subtotal      string                `json:"subtotal"`
	WhtRate       string                `json:"wht_rate"`
	WhtAmount     string                `json:"wht_amount"`
	Total         string                `json:"total"`
	CreatedAt     string                `json:"created_at"`
	Items         []invoiceItemResponse `json:"items,omitempty"`
}

func toInvoiceResponse(inv database.Invoice, items []database.InvoiceItem) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		SupplierID:    inv.SupplierID,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate.Time.Format("2006-01-02"),
		Subtotal:      numericToString(inv.Subtotal),
		WhtRate:       numericToString(inv.WhtRate),
		WhtAmount:     numericToString(inv.WhtAmount),
		Total:         numericToString(inv.Total),
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, invoiceItemResponse{
			Description: it.Description,
			Amount:      numericToString(it.Amount),
		})
	}
	return resp
}

// --- Handlers ---

// List handles GET /invoices?limit=N.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	invoices, err := h.store.ListInvoices(r.Context(), limit)
	if err != nil {
		log.Printf("ERROR: list invoices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /invoices. The withholding tax is computed
// server-side: wht = round(subtotal * rate / 100, 2), total = subtotal
// minus wht. Items with an empty description or non-positive amount are
// rejected. Invoice and items are written in one transaction.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.SupplierID == 0 || req.InvoiceNumber == "" || req.InvoiceDate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "supplier_id, invoice_number and invoice_date are required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one line item is required"})
		return
	}

	invoiceDate, err := time.Parse("2006-01-02", req.InvoiceDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid invoice_date, expected YYYY-MM-DD"})
		return
	}

	subtotal := decimal.Zero
	amounts := make([]decimal.Decimal, len(req.Items))
	for i, item := range req.Items {
		if item.Description == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item description is required"})
			return
		}
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil || amount.LessThanOrEqual(decimal.Zero) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item amount must be positive"})
			return
		}
		amounts[i] = amount
		subtotal = subtotal.Add(amount)
	}

	// WHT rate: request value, else the configured default.
	var whtRate decimal.Decimal
	if req.WhtRate != "" {
		whtRate, err = decimal.NewFromString(req.WhtRate)
		if err != nil || whtRate.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wht_rate"})
			return
		}
	} else {
		setting, err := h.store.GetSetting(r.Context(), "default_wht_rate")
		if err != nil {
			log.Printf("ERROR: get default_wht_rate: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		whtRate, err = decimal.NewFromString(setting.Value)
		if err != nil {
			log.Printf("ERROR: bad default_wht_rate setting %q: %v", setting.Value, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	whtAmount := subtotal.Mul(whtRate).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Sub(whtAmount)

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for create invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	if _, err := txStore.GetSupplier(r.Context(), req.SupplierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supplier not found"})
			return
		}
		log.Printf("ERROR: get supplier for invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	invoice, err := txStore.CreateInvoice(r.Context(), database.CreateInvoiceParams{
		SupplierID:    req.SupplierID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		Subtotal:      decimalToNumeric(subtotal),
		WhtRate:       decimalToNumeric(whtRate),
		WhtAmount:     decimalToNumeric(whtAmount),
		Total:         decimalToNumeric(total),
	})
	if err != nil {
		log.Printf("ERROR: create invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]database.InvoiceItem, len(req.Items))
	for i, item := range req.Items {
		created, err := txStore.CreateInvoiceItem(r.Context(), database.CreateInvoiceItemParams{
			InvoiceID:   invoice.ID,
			Description: item.Description,
			Amount:      decimalToNumeric(amounts[i]),
		})
		if err != nil {
			log.Printf("ERROR: create invoice item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		items[i] = created
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for create invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceResponse(invoice, items))
}

// Get handles GET /invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid invoice ID"})
		return
	}

	invoice, err := h.store.GetInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
			return
		}
		log.Printf("ERROR: get invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListInvoiceItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list invoice items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice, items))
}
