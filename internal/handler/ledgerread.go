package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/enum"
)

// LedgerStore defines the DB methods needed by the ledger read surface.
// Satisfied by *database.Queries.
type LedgerStore interface {
	ListLedgerRecords(ctx context.Context, arg database.ListLedgerRecordsParams) ([]database.SalesLedgerRecord, error)
}

// LedgerHandler exposes the stable, queryable ledger relation - the sole
// contract consumed by reporting and dashboard collaborators.
type LedgerHandler struct {
	store LedgerStore
	loc   *time.Location
}

// NewLedgerHandler creates a new LedgerHandler. loc is the business
// timezone used to resolve the default date window; nil means UTC.
func NewLedgerHandler(store LedgerStore, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerHandler{store: store, loc: loc}
}

// RegisterRoutes registers ledger read endpoints on the given Chi router.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ledger", h.List)
}

type ledgerRecordResponse struct {
	ReceiptNumber    string          `json:"receipt_number"`
	LineNumber       int32           `json:"line_number"`
	SaleDate         string          `json:"sale_date"`
	CustomerName     string          `json:"customer_name,omitempty"`
	ProductName      string          `json:"product_name"`
	Category         string          `json:"category,omitempty"`
	Quantity         string          `json:"quantity"`
	GrossAmount      string          `json:"gross_amount"`
	NetAmount        string          `json:"net_amount"`
	VATAmount        string          `json:"vat_amount"`
	DiscountAmount   string          `json:"discount_amount"`
	CostAmount       string          `json:"cost_amount"`
	ProfitAmount     string          `json:"profit_amount"`
	PaymentMethod    *string         `json:"payment_method"`
	PaymentBreakdown json.RawMessage `json:"payment_breakdown,omitempty"`
	IsVoided         bool            `json:"is_voided"`
	Source           string          `json:"source"`
	BatchID          string          `json:"batch_id"`
	TransactionID    *string         `json:"transaction_id,omitempty"`
	LineItemID       *string         `json:"line_item_id,omitempty"`
}

func toLedgerRecordResponse(rec database.SalesLedgerRecord) ledgerRecordResponse {
	resp := ledgerRecordResponse{
		ReceiptNumber:  rec.ReceiptNumber,
		LineNumber:     rec.LineNumber,
		SaleDate:       rec.SaleDate.Time.Format("2006-01-02"),
		CustomerName:   rec.CustomerName.String,
		ProductName:    rec.ProductName,
		Category:       rec.Category.String,
		Quantity:       numericToString(rec.Quantity),
		GrossAmount:    numericToString(rec.GrossAmount),
		NetAmount:      numericToString(rec.NetAmount),
		VATAmount:      numericToString(rec.VATAmount),
		DiscountAmount: numericToString(rec.DiscountAmount),
		CostAmount:     numericToString(rec.CostAmount),
		ProfitAmount:   numericToString(rec.ProfitAmount),
		IsVoided:       rec.IsVoided,
		Source:         rec.Source,
		BatchID:        rec.BatchID.String(),
	}
	if rec.PaymentMethod.Valid {
		resp.PaymentMethod = &rec.PaymentMethod.String
	}
	if len(rec.PaymentBreakdown) > 0 {
		resp.PaymentBreakdown = json.RawMessage(rec.PaymentBreakdown)
	}
	if rec.TransactionID.Valid {
		s := uuid.UUID(rec.TransactionID.Bytes).String()
		resp.TransactionID = &s
	}
	if rec.LineItemID.Valid {
		s := uuid.UUID(rec.LineItemID.Bytes).String()
		resp.LineItemID = &s
	}
	return resp
}

// List handles GET /ledger?start_date&end_date&source.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	source := r.URL.Query().Get("source")
	switch source {
	case "", enum.SourceLegacy, enum.SourceNewSystem:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source"})
		return
	}

	records, err := h.store.ListLedgerRecords(r.Context(), database.ListLedgerRecordsParams{
		StartDate: startDate,
		EndDate:   endDate,
		Source:    source,
	})
	if err != nil {
		log.Printf("ERROR: list ledger records: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ledgerRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = toLedgerRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}
