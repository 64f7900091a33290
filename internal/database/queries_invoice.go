package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const listSuppliers = `
SELECT id, name, address_line1, address_line2, tax_id, default_description, default_unit_price, created_at
FROM suppliers
ORDER BY name
`

func (q *Queries) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := q.db.Query(ctx, listSuppliers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.AddressLine1,
			&s.AddressLine2,
			&s.TaxID,
			&s.DefaultDescription,
			&s.DefaultUnitPrice,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getSupplier = `
SELECT id, name, address_line1, address_line2, tax_id, default_description, default_unit_price, created_at
FROM suppliers
WHERE id = $1
`

func (q *Queries) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	row := q.db.QueryRow(ctx, getSupplier, id)
	var s Supplier
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.AddressLine1,
		&s.AddressLine2,
		&s.TaxID,
		&s.DefaultDescription,
		&s.DefaultUnitPrice,
		&s.CreatedAt,
	)
	return s, err
}

const createSupplier = `
INSERT INTO suppliers (name, address_line1, address_line2, tax_id, default_description, default_unit_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, address_line1, address_line2, tax_id, default_description, default_unit_price, created_at
`

type CreateSupplierParams struct {
	Name               string
	AddressLine1       pgtype.Text
	AddressLine2       pgtype.Text
	TaxID              pgtype.Text
	DefaultDescription pgtype.Text
	DefaultUnitPrice   pgtype.Numeric
}

func (q *Queries) CreateSupplier(ctx context.Context, arg CreateSupplierParams) (Supplier, error) {
	row := q.db.QueryRow(ctx, createSupplier,
		arg.Name,
		arg.AddressLine1,
		arg.AddressLine2,
		arg.TaxID,
		arg.DefaultDescription,
		arg.DefaultUnitPrice,
	)
	var s Supplier
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.AddressLine1,
		&s.AddressLine2,
		&s.TaxID,
		&s.DefaultDescription,
		&s.DefaultUnitPrice,
		&s.CreatedAt,
	)
	return s, err
}

const createInvoice = `
INSERT INTO invoices (supplier_id, invoice_number, invoice_date, subtotal, wht_rate, wht_amount, total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, supplier_id, invoice_number, invoice_date, subtotal, wht_rate, wht_amount, total, created_at
`

type CreateInvoiceParams struct {
	SupplierID    int64
	InvoiceNumber string
	InvoiceDate   time.Time
	Subtotal      pgtype.Numeric
	WhtRate       pgtype.Numeric
	WhtAmount     pgtype.Numeric
	Total         pgtype.Numeric
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, createInvoice,
		arg.SupplierID,
		arg.InvoiceNumber,
		arg.InvoiceDate,
		arg.Subtotal,
		arg.WhtRate,
		arg.WhtAmount,
		arg.Total,
	)
	return scanInvoice(row)
}

const createInvoiceItem = `
INSERT INTO invoice_items (invoice_id, description, amount)
VALUES ($1, $2, $3)
RETURNING id, invoice_id, description, amount
`

type CreateInvoiceItemParams struct {
	InvoiceID   int64
	Description string
	Amount      pgtype.Numeric
}

func (q *Queries) CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) (InvoiceItem, error) {
	row := q.db.QueryRow(ctx, createInvoiceItem, arg.InvoiceID, arg.Description, arg.Amount)
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Amount)
	return it, err
}

const listInvoices = `
SELECT id, supplier_id, invoice_number, invoice_date, subtotal, wht_rate, wht_amount, total, created_at
FROM invoices
ORDER BY invoice_date DESC, id DESC
LIMIT $1
`

func (q *Queries) ListInvoices(ctx context.Context, limit int32) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

const getInvoice = `
SELECT id, supplier_id, invoice_number, invoice_date, subtotal, wht_rate, wht_amount, total, created_at
FROM invoices
WHERE id = $1
`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
}

const listInvoiceItems = `
SELECT id, invoice_id, description, amount
FROM invoice_items
WHERE invoice_id = $1
ORDER BY id
`

func (q *Queries) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.db.Query(ctx, listInvoiceItems, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.SupplierID,
		&inv.InvoiceNumber,
		&inv.InvoiceDate,
		&inv.Subtotal,
		&inv.WhtRate,
		&inv.WhtAmount,
		&inv.Total,
		&inv.CreatedAt,
	)
	return inv, err
}

// --- Settings ---

const listSettings = `
SELECT key, value FROM settings ORDER BY key
`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.Query(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getSetting = `
SELECT key, value FROM settings WHERE key = $1
`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&s.Key, &s.Value)
	return s, err
}

const upsertSetting = `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
RETURNING key, value
`

func (q *Queries) UpsertSetting(ctx context.Context, key, value string) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, upsertSetting, key, value).Scan(&s.Key, &s.Value)
	return s, err
}
