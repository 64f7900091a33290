package database

import (
	"context"
)

const listPaidTransactions = `
SELECT id, receipt_number, transaction_date, customer_name, status, total_amount, created_at
FROM pos_transactions
WHERE status = 'paid'
ORDER BY transaction_date, receipt_number
`

// ListPaidTransactions returns transaction headers eligible for the
// ledger. Only paid transactions are eligible.
func (q *Queries) ListPaidTransactions(ctx context.Context) ([]PosTransaction, error) {
	rows, err := q.db.Query(ctx, listPaidTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PosTransaction
	for rows.Next() {
		var t PosTransaction
		if err := rows.Scan(
			&t.ID,
			&t.ReceiptNumber,
			&t.TransactionDate,
			&t.CustomerName,
			&t.Status,
			&t.TotalAmount,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const listLineItemsForPaidTransactions = `
SELECT li.id, li.transaction_id, li.line_number, li.product_name, li.category,
       li.quantity, li.unit_price, li.discount_amount, li.line_total, li.cost_amount, li.is_voided
FROM pos_line_items li
JOIN pos_transactions t ON t.id = li.transaction_id
WHERE t.status = 'paid'
ORDER BY li.transaction_id, li.line_number
`

// ListLineItemsForPaidTransactions returns all line items belonging to
// paid transactions, voided lines included.
func (q *Queries) ListLineItemsForPaidTransactions(ctx context.Context) ([]PosLineItem, error) {
	rows, err := q.db.Query(ctx, listLineItemsForPaidTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PosLineItem
	for rows.Next() {
		var li PosLineItem
		if err := rows.Scan(
			&li.ID,
			&li.TransactionID,
			&li.LineNumber,
			&li.ProductName,
			&li.Category,
			&li.Quantity,
			&li.UnitPrice,
			&li.DiscountAmount,
			&li.LineTotal,
			&li.CostAmount,
			&li.IsVoided,
		); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

const listPaymentsForPaidTransactions = `
SELECT p.id, p.transaction_id, p.payment_sequence, p.method, p.amount, p.status, p.reference_number
FROM pos_payments p
JOIN pos_transactions t ON t.id = p.transaction_id
WHERE t.status = 'paid'
ORDER BY p.transaction_id, p.payment_sequence
`

// ListPaymentsForPaidTransactions returns all payment allocations for
// paid transactions, in sequence order. Status filtering is left to the
// consolidator so inconsistent transactions can be detected and counted.
func (q *Queries) ListPaymentsForPaidTransactions(ctx context.Context) ([]PosPayment, error) {
	rows, err := q.db.Query(ctx, listPaymentsForPaidTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PosPayment
	for rows.Next() {
		var p PosPayment
		if err := rows.Scan(
			&p.ID,
			&p.TransactionID,
			&p.PaymentSequence,
			&p.Method,
			&p.Amount,
			&p.Status,
			&p.ReferenceNumber,
		); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
