package database

import (
	"context"
)

const listLegacyStaging = `
SELECT id, receipt_number, customer_name, product_name, date_text, quantity, unit_price, imported_at
FROM legacy_staging
ORDER BY id
`

// ListLegacyStaging returns every staged extract row awaiting normalization.
func (q *Queries) ListLegacyStaging(ctx context.Context) ([]LegacyStagingRow, error) {
	rows, err := q.db.Query(ctx, listLegacyStaging)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LegacyStagingRow
	for rows.Next() {
		var r LegacyStagingRow
		if err := rows.Scan(
			&r.ID,
			&r.ReceiptNumber,
			&r.CustomerName,
			&r.ProductName,
			&r.DateText,
			&r.Quantity,
			&r.UnitPrice,
			&r.ImportedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listLatestLegacyCorrections = `
SELECT DISTINCT ON (receipt_number) id, receipt_number, corrected_customer_name, created_at
FROM legacy_corrections
ORDER BY receipt_number, created_at DESC, id DESC
`

// ListLatestLegacyCorrections returns the most recent correction per
// receipt number. Older overlays for the same receipt are superseded.
func (q *Queries) ListLatestLegacyCorrections(ctx context.Context) ([]LegacyCorrection, error) {
	rows, err := q.db.Query(ctx, listLatestLegacyCorrections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LegacyCorrection
	for rows.Next() {
		var c LegacyCorrection
		if err := rows.Scan(&c.ID, &c.ReceiptNumber, &c.CorrectedCustomerName, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const listLegacyProductMap = `
SELECT legacy_name, product_name, category
FROM legacy_product_map
ORDER BY legacy_name
`

// ListLegacyProductMap returns the configured legacy-name mapping.
func (q *Queries) ListLegacyProductMap(ctx context.Context) ([]LegacyProductMap, error) {
	rows, err := q.db.Query(ctx, listLegacyProductMap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LegacyProductMap
	for rows.Next() {
		var m LegacyProductMap
		if err := rows.Scan(&m.LegacyName, &m.ProductName, &m.Category); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
