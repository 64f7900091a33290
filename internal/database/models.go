package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// LegacyStagingRow is a raw extract row from the legacy POS. Dates are
// kept as the original text until the loader parses them.
type LegacyStagingRow struct {
	ID            int64
	ReceiptNumber pgtype.Text
	CustomerName  pgtype.Text
	ProductName   pgtype.Text
	DateText      pgtype.Text
	Quantity      pgtype.Numeric
	UnitPrice     pgtype.Numeric
	ImportedAt    time.Time
}

// LegacyCorrection is a manually entered overlay keyed by receipt number.
// The most recent correction per receipt wins.
type LegacyCorrection struct {
	ID                    int64
	ReceiptNumber         string
	CorrectedCustomerName string
	CreatedAt             time.Time
}

// LegacyProductMap maps a free-text legacy product name to its canonical
// product identity.
type LegacyProductMap struct {
	LegacyName  string
	ProductName string
	Category    pgtype.Text
}

// PosTransaction is a transaction header from the new POS.
type PosTransaction struct {
	ID              uuid.UUID
	ReceiptNumber   string
	TransactionDate pgtype.Date
	CustomerName    pgtype.Text
	Status          string
	TotalAmount     pgtype.Numeric
	CreatedAt       time.Time
}

// PosLineItem is one line of a new-POS transaction.
type PosLineItem struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	LineNumber     int32
	ProductName    string
	Category       pgtype.Text
	Quantity       pgtype.Numeric
	UnitPrice      pgtype.Numeric
	DiscountAmount pgtype.Numeric
	LineTotal      pgtype.Numeric
	CostAmount     pgtype.Numeric
	IsVoided       bool
}

// PosPayment is one payment allocation against a transaction.
type PosPayment struct {
	ID              uuid.UUID
	TransactionID   uuid.UUID
	PaymentSequence int32
	Method          string
	Amount          pgtype.Numeric
	Status          string
	ReferenceNumber pgtype.Text
}

// SalesLedgerRecord is one row of the unified, append-only sales ledger.
type SalesLedgerRecord struct {
	ID               int64
	ReceiptNumber    string
	LineNumber       int32
	SaleDate         pgtype.Date
	CustomerName     pgtype.Text
	ProductName      string
	Category         pgtype.Text
	Quantity         pgtype.Numeric
	GrossAmount      pgtype.Numeric
	NetAmount        pgtype.Numeric
	VATAmount        pgtype.Numeric
	DiscountAmount   pgtype.Numeric
	CostAmount       pgtype.Numeric
	ProfitAmount     pgtype.Numeric
	PaymentMethod    pgtype.Text
	PaymentBreakdown []byte // jsonb
	IsVoided         bool
	Source           string
	BatchID          uuid.UUID
	TransactionID    pgtype.UUID
	LineItemID       pgtype.UUID
	ProcessedAt      time.Time
}

// CutoffConfig is the single-row versioned partition boundary. At most
// one row may be active (partial unique index on is_active).
type CutoffConfig struct {
	ID         int64
	CutoffDate pgtype.Date
	Reason     string
	IsActive   bool
	CreatedAt  time.Time
}

// SyncBatch is the append-only audit record for one pipeline run.
type SyncBatch struct {
	ID              uuid.UUID
	StartedAt       time.Time
	CompletedAt     pgtype.Timestamptz
	Status          string
	LegacyProcessed int32
	LegacyInserted  int32
	LegacySkipped   int32
	PosProcessed    int32
	PosInserted     int32
	PosSkipped      int32
	ErrorDetail     pgtype.Text
}

// Supplier is a vendor the business issues withholding-tax invoices to.
type Supplier struct {
	ID                 int64
	Name               string
	AddressLine1       pgtype.Text
	AddressLine2       pgtype.Text
	TaxID              pgtype.Text
	DefaultDescription pgtype.Text
	DefaultUnitPrice   pgtype.Numeric
	CreatedAt          time.Time
}

// Invoice is a generated withholding-tax invoice.
type Invoice struct {
	ID            int64
	SupplierID    int64
	InvoiceNumber string
	InvoiceDate   pgtype.Date
	Subtotal      pgtype.Numeric
	WhtRate       pgtype.Numeric
	WhtAmount     pgtype.Numeric
	Total         pgtype.Numeric
	CreatedAt     time.Time
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Amount      pgtype.Numeric
}

// Setting is a key/value business setting (company details, bank details,
// default WHT rate).
type Setting struct {
	Key   string
	Value string
}

// PaymentBreakdownEntry is the structured per-payment breakdown stored in
// sales_ledger.payment_breakdown. Percentage is amount over the sum of all
// payment amounts for the transaction, to two decimal places.
type PaymentBreakdownEntry struct {
	Method     string `json:"method"`
	Amount     string `json:"amount"`
	Percentage string `json:"percentage"`
	Sequence   int32  `json:"sequence"`
	Reference  string `json:"reference,omitempty"`
}
