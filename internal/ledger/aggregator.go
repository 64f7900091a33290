package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/shopspring/decimal"
)

// PosStore defines the DB methods needed by the new-system aggregator.
// Satisfied by *database.Queries.
type PosStore interface {
	ListPaidTransactions(ctx context.Context) ([]database.PosTransaction, error)
	ListLineItemsForPaidTransactions(ctx context.Context) ([]database.PosLineItem, error)
	ListPaymentsForPaidTransactions(ctx context.Context) ([]database.PosPayment, error)
}

// Aggregator joins paid transaction headers, their line items, and the
// consolidated payment descriptors into ledger-ready candidates, one
// per line item.
type Aggregator struct {
	store   PosStore
	vatRate decimal.Decimal
}

// NewAggregator creates an Aggregator with the given VAT rate.
func NewAggregator(store PosStore, vatRate decimal.Decimal) *Aggregator {
	return &Aggregator{store: store, vatRate: vatRate}
}

// paymentTolerance bounds the acceptable rounding difference between a
// transaction's total and the sum of its completed payments.
var paymentTolerance = decimal.NewFromFloat(0.01)

// Load produces one candidate per line item of every paid transaction
// with a positive total. Payments are consolidated per transaction
// before the join so line rows never fan out against payment rows.
// Voided lines are emitted flagged, with zero monetary contribution,
// for audit; they are never silently dropped.
func (a *Aggregator) Load(ctx context.Context) (*LoadResult, error) {
	transactions, err := a.store.ListPaidTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list paid transactions: %w", err)
	}

	lines, err := a.store.ListLineItemsForPaidTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}

	payments, err := a.store.ListPaymentsForPaidTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	consolidated := Consolidate(payments)

	headers := make(map[uuid.UUID]database.PosTransaction, len(transactions))
	for _, t := range transactions {
		headers[t.ID] = t

		// Payment consistency: a transaction with no completed payments,
		// or whose completed payments disagree with the header total
		// beyond rounding tolerance, keeps its line rows but loses the
		// payment descriptor.
		payment := consolidated[t.ID]
		if payment == nil {
			log.Printf("aggregator: transaction %s (%s): %v, emitting lines with null descriptor",
				t.ID, t.ReceiptNumber, ErrNoCompletedPayments)
			continue
		}
		if payment.Total.Sub(numericToDecimal(t.TotalAmount)).Abs().GreaterThan(paymentTolerance) {
			log.Printf("aggregator: transaction %s (%s): %v (paid %s of %s), emitting lines with null descriptor",
				t.ID, t.ReceiptNumber, ErrPaymentTotalMismatch,
				payment.Total.StringFixed(2), numericToDecimal(t.TotalAmount).StringFixed(2))
			delete(consolidated, t.ID)
		}
	}

	result := &LoadResult{}
	for _, line := range lines {
		result.Processed++

		header, ok := headers[line.TransactionID]
		if !ok {
			// Line of a transaction that changed status between queries.
			result.Skipped++
			continue
		}

		if numericToDecimal(header.TotalAmount).LessThanOrEqual(decimal.Zero) {
			result.Skipped++
			continue
		}

		result.Candidates = append(result.Candidates, a.candidate(header, line, consolidated[header.ID]))
	}

	return result, nil
}

func (a *Aggregator) candidate(
	header database.PosTransaction,
	line database.PosLineItem,
	payment *ConsolidatedPayment,
) Candidate {
	cand := Candidate{
		ReceiptNumber: header.ReceiptNumber,
		LineNumber:    line.LineNumber,
		SaleDate:      header.TransactionDate.Time.UTC(),
		CustomerName:  header.CustomerName.String,
		ProductName:   line.ProductName,
		Category:      line.Category.String,
		Quantity:      numericToDecimal(line.Quantity),
		Payment:       payment,
		IsVoided:      line.IsVoided,
		TransactionID: header.ID,
		LineItemID:    line.ID,
	}

	if line.IsVoided {
		// Voided lines stay in the ledger for audit but contribute
		// zero revenue.
		return cand
	}

	gross := numericToDecimal(line.LineTotal)
	net, vat := splitVAT(gross, a.vatRate)
	cost := numericToDecimal(line.CostAmount)

	cand.GrossAmount = gross
	cand.NetAmount = net
	cand.VATAmount = vat
	cand.DiscountAmount = numericToDecimal(line.DiscountAmount)
	cand.CostAmount = cost
	cand.ProfitAmount = net.Sub(cost)
	return cand
}
