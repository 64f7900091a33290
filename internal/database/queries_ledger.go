package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const deleteLedgerWindow = `
DELETE FROM sales_ledger
WHERE source = $1 AND sale_date >= $2 AND sale_date <= $3
`

type DeleteLedgerWindowParams struct {
	Source    string
	StartDate time.Time
	EndDate   time.Time
}

// DeleteLedgerWindow removes all rows of one source inside a date window,
// ahead of re-inserting that window's replacement rows.
func (q *Queries) DeleteLedgerWindow(ctx context.Context, arg DeleteLedgerWindowParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLedgerWindow, arg.Source, arg.StartDate, arg.EndDate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteReclassifiedRows = `
DELETE FROM sales_ledger
WHERE (source = 'legacy' AND sale_date > $1)
   OR (source = 'new_system' AND sale_date <= $1)
`

// DeleteReclassifiedRows removes rows stranded on the wrong side of the
// given cutoff. After a cutoff move, rows inserted under the previous
// boundary can sit on dates their source no longer owns; the per-source
// delete windows only span dates the source still keeps, so they never
// reach these rows.
func (q *Queries) DeleteReclassifiedRows(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteReclassifiedRows, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertLedgerRecord = `
INSERT INTO sales_ledger (
	receipt_number, line_number, sale_date, customer_name, product_name, category,
	quantity, gross_amount, net_amount, vat_amount, discount_amount, cost_amount, profit_amount,
	payment_method, payment_breakdown, is_voided, source, batch_id, transaction_id, line_item_id
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
)
RETURNING id, receipt_number, line_number, sale_date, customer_name, product_name, category,
	quantity, gross_amount, net_amount, vat_amount, discount_amount, cost_amount, profit_amount,
	payment_method, payment_breakdown, is_voided, source, batch_id, transaction_id, line_item_id, processed_at
`

type InsertLedgerRecordParams struct {
	ReceiptNumber    string
	LineNumber       int32
	SaleDate         time.Time
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
	PaymentBreakdown []byte
	IsVoided         bool
	Source           string
	BatchID          uuid.UUID
	TransactionID    pgtype.UUID
	LineItemID       pgtype.UUID
}

// InsertLedgerRecord appends one row to the sales ledger.
func (q *Queries) InsertLedgerRecord(ctx context.Context, arg InsertLedgerRecordParams) (SalesLedgerRecord, error) {
	row := q.db.QueryRow(ctx, insertLedgerRecord,
		arg.ReceiptNumber,
		arg.LineNumber,
		arg.SaleDate,
		arg.CustomerName,
		arg.ProductName,
		arg.Category,
		arg.Quantity,
		arg.GrossAmount,
		arg.NetAmount,
		arg.VATAmount,
		arg.DiscountAmount,
		arg.CostAmount,
		arg.ProfitAmount,
		arg.PaymentMethod,
		arg.PaymentBreakdown,
		arg.IsVoided,
		arg.Source,
		arg.BatchID,
		arg.TransactionID,
		arg.LineItemID,
	)
	var r SalesLedgerRecord
	err := row.Scan(
		&r.ID,
		&r.ReceiptNumber,
		&r.LineNumber,
		&r.SaleDate,
		&r.CustomerName,
		&r.ProductName,
		&r.Category,
		&r.Quantity,
		&r.GrossAmount,
		&r.NetAmount,
		&r.VATAmount,
		&r.DiscountAmount,
		&r.CostAmount,
		&r.ProfitAmount,
		&r.PaymentMethod,
		&r.PaymentBreakdown,
		&r.IsVoided,
		&r.Source,
		&r.BatchID,
		&r.TransactionID,
		&r.LineItemID,
		&r.ProcessedAt,
	)
	return r, err
}

const listLedgerRecords = `
SELECT id, receipt_number, line_number, sale_date, customer_name, product_name, category,
	quantity, gross_amount, net_amount, vat_amount, discount_amount, cost_amount, profit_amount,
	payment_method, payment_breakdown, is_voided, source, batch_id, transaction_id, line_item_id, processed_at
FROM sales_ledger
WHERE sale_date >= $1 AND sale_date < $2
  AND ($3::text = '' OR source = $3)
ORDER BY sale_date, receipt_number, line_number
`

type ListLedgerRecordsParams struct {
	StartDate time.Time
	EndDate   time.Time
	Source    string
}

// ListLedgerRecords is the stable read surface consumed by reporting
// collaborators. EndDate is exclusive; empty Source means both sources.
func (q *Queries) ListLedgerRecords(ctx context.Context, arg ListLedgerRecordsParams) ([]SalesLedgerRecord, error) {
	rows, err := q.db.Query(ctx, listLedgerRecords, arg.StartDate, arg.EndDate, arg.Source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SalesLedgerRecord
	for rows.Next() {
		var r SalesLedgerRecord
		if err := rows.Scan(
			&r.ID,
			&r.ReceiptNumber,
			&r.LineNumber,
			&r.SaleDate,
			&r.CustomerName,
			&r.ProductName,
			&r.Category,
			&r.Quantity,
			&r.GrossAmount,
			&r.NetAmount,
			&r.VATAmount,
			&r.DiscountAmount,
			&r.CostAmount,
			&r.ProfitAmount,
			&r.PaymentMethod,
			&r.PaymentBreakdown,
			&r.IsVoided,
			&r.Source,
			&r.BatchID,
			&r.TransactionID,
			&r.LineItemID,
			&r.ProcessedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getLedgerSourceStats = `
SELECT source,
       COUNT(*) AS record_count,
       MAX(sale_date) AS latest_date,
       COALESCE(SUM(gross_amount), 0) AS gross_revenue,
       COALESCE(SUM(net_amount), 0) AS net_revenue
FROM sales_ledger
GROUP BY source
`

type GetLedgerSourceStatsRow struct {
	Source       string
	RecordCount  int64
	LatestDate   pgtype.Date
	GrossRevenue pgtype.Numeric
	NetRevenue   pgtype.Numeric
}

// GetLedgerSourceStats returns per-source counts, latest dates, and
// revenue totals for the health summary.
func (q *Queries) GetLedgerSourceStats(ctx context.Context) ([]GetLedgerSourceStatsRow, error) {
	rows, err := q.db.Query(ctx, getLedgerSourceStats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GetLedgerSourceStatsRow
	for rows.Next() {
		var r GetLedgerSourceStatsRow
		if err := rows.Scan(&r.Source, &r.RecordCount, &r.LatestDate, &r.GrossRevenue, &r.NetRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// AcquireSyncLock takes the transaction-scoped advisory lock that
// serializes ledger window replacement and cutoff changes. Blocks until
// the lock is granted; released automatically at commit or rollback.
// Must be called inside a transaction.
func (q *Queries) AcquireSyncLock(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, syncLockID)
	return err
}

// syncLockID identifies the ledger rebuild advisory lock. Arbitrary but
// must be unique among advisory locks in this database.
const syncLockID = int64(874219001)
