package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors surfaced by the reconciliation pipeline.
var (
	ErrUnparseableDate      = errors.New("unparseable date")
	ErrMissingReceipt       = errors.New("missing receipt number")
	ErrNoCompletedPayments  = errors.New("transaction has no completed payments")
	ErrPaymentTotalMismatch = errors.New("completed payments do not match transaction total")
	ErrCutoffConflict       = errors.New("another cutoff is already active")
	ErrCutoffNotConfigured  = errors.New("no active cutoff configured")
)

// TxBeginner starts a new database transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Candidate is one ledger-ready record produced by a source loader,
// before cutoff partitioning assigns it a source tag.
type Candidate struct {
	ReceiptNumber  string
	LineNumber     int32
	SaleDate       time.Time // date only, midnight UTC
	CustomerName   string
	ProductName    string
	Category       string
	Quantity       decimal.Decimal
	GrossAmount    decimal.Decimal
	NetAmount      decimal.Decimal
	VATAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	CostAmount     decimal.Decimal
	ProfitAmount   decimal.Decimal

	// Payment is nil when no consolidated descriptor could be derived
	// (legacy rows, or transactions with zero completed payments).
	Payment *ConsolidatedPayment

	IsVoided bool

	// Back-references to the originating transaction/line. Zero UUIDs
	// for legacy-sourced candidates.
	TransactionID uuid.UUID
	LineItemID    uuid.UUID
}

// LoadResult is the outcome of one source loader phase.
type LoadResult struct {
	Candidates []Candidate
	Processed  int32
	Skipped    int32
}

// splitVAT extracts the net and VAT portions of a VAT-inclusive gross
// amount at the given rate, rounded to 2 decimal places.
func splitVAT(gross, rate decimal.Decimal) (net, vat decimal.Decimal) {
	net = gross.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
	vat = gross.Sub(net)
	return net, vat
}

// --- pgtype conversion helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
