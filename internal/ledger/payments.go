package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/enum"
	"github.com/shopspring/decimal"
)

// ConsolidatedPayment is the single canonical payment descriptor for one
// transaction, folded from all of its completed payment allocations.
type ConsolidatedPayment struct {
	// Descriptor is the display name of the sole payment method, or a
	// composed "Split Payment (A, B)" label for multi-method settles.
	Descriptor string

	// Breakdown holds one entry per completed payment, in sequence order.
	Breakdown []database.PaymentBreakdownEntry

	// Total is the sum of all completed payment amounts, compared against
	// the transaction header's total downstream.
	Total decimal.Decimal
}

// Consolidate groups payment allocations by transaction and folds each
// group into one ConsolidatedPayment. This aggregation must run before
// any join to line items: joining line items directly against raw
// payment rows multiplies both sides (3 lines x 2 payments = 6 rows).
//
// Transactions whose payments are all pending or failed get no entry in
// the returned map; their line rows are still emitted downstream with a
// null descriptor rather than being dropped.
func Consolidate(payments []database.PosPayment) map[uuid.UUID]*ConsolidatedPayment {
	grouped := make(map[uuid.UUID][]database.PosPayment)
	for _, p := range payments {
		if p.Status != enum.PaymentStatusCompleted {
			continue
		}
		grouped[p.TransactionID] = append(grouped[p.TransactionID], p)
	}

	out := make(map[uuid.UUID]*ConsolidatedPayment, len(grouped))
	for txID, group := range grouped {
		out[txID] = consolidateOne(group)
	}
	return out
}

func consolidateOne(group []database.PosPayment) *ConsolidatedPayment {
	sort.Slice(group, func(i, j int) bool {
		return group[i].PaymentSequence < group[j].PaymentSequence
	})

	total := decimal.Zero
	for _, p := range group {
		total = total.Add(numericToDecimal(p.Amount))
	}

	// Distinct display names, sorted alphabetically for a stable label.
	seen := make(map[string]bool)
	var names []string
	for _, p := range group {
		name := enum.PaymentMethodDisplay(p.Method)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	descriptor := names[0]
	if len(names) > 1 {
		descriptor = fmt.Sprintf("Split Payment (%s)", strings.Join(names, ", "))
	}

	breakdown := make([]database.PaymentBreakdownEntry, len(group))
	for i, p := range group {
		amount := numericToDecimal(p.Amount)
		pct := decimal.Zero
		if !total.IsZero() {
			pct = amount.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
		}
		breakdown[i] = database.PaymentBreakdownEntry{
			Method:     enum.PaymentMethodDisplay(p.Method),
			Amount:     amount.StringFixed(2),
			Percentage: pct.StringFixed(2),
			Sequence:   p.PaymentSequence,
			Reference:  p.ReferenceNumber.String,
		}
	}

	return &ConsolidatedPayment{
		Descriptor: descriptor,
		Breakdown:  breakdown,
		Total:      total,
	}
}
