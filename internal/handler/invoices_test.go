package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/handler"
)

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements ledger.TxBeginner.
type mockTxBeginner struct {
	tx pgx.Tx
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

// mockInvoiceStore implements handler.InvoiceStore.
type mockInvoiceStore struct {
	supplier     database.Supplier
	supplierErr  error
	settings     map[string]string
	invoices     []database.Invoice
	items        []database.InvoiceItem
	createdInv   *database.CreateInvoiceParams
	createdItems []database.CreateInvoiceItemParams
}

func (m *mockInvoiceStore) GetSupplier(ctx context.Context, id int64) (database.Supplier, error) {
	if m.supplierErr != nil {
		return database.Supplier{}, m.supplierErr
	}
	return m.supplier, nil
}

func (m *mockInvoiceStore) GetSetting(ctx context.Context, key string) (database.Setting, error) {
	if v, ok := m.settings[key]; ok {
		return database.Setting{Key: key, Value: v}, nil
	}
	return database.Setting{}, pgx.ErrNoRows
}

func (m *mockInvoiceStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	m.createdInv = &arg
	return database.Invoice{
		ID:            7,
		SupplierID:    arg.SupplierID,
		InvoiceNumber: arg.InvoiceNumber,
		InvoiceDate:   toDate(arg.InvoiceDate.Format("2006-01-02")),
		Subtotal:      arg.Subtotal,
		WhtRate:       arg.WhtRate,
		WhtAmount:     arg.WhtAmount,
		Total:         arg.Total,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *mockInvoiceStore) CreateInvoiceItem(ctx context.Context, arg database.CreateInvoiceItemParams) (database.InvoiceItem, error) {
	m.createdItems = append(m.createdItems, arg)
	return database.InvoiceItem{
		ID:          int64(len(m.createdItems)),
		InvoiceID:   arg.InvoiceID,
		Description: arg.Description,
		Amount:      arg.Amount,
	}, nil
}

func (m *mockInvoiceStore) ListInvoices(ctx context.Context, limit int32) ([]database.Invoice, error) {
	return m.invoices, nil
}

func (m *mockInvoiceStore) GetInvoice(ctx context.Context, id int64) (database.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return database.Invoice{}, pgx.ErrNoRows
}

func (m *mockInvoiceStore) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]database.InvoiceItem, error) {
	return m.items, nil
}

func setupInvoiceRouter(store *mockInvoiceStore) (http.Handler, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	h := handler.NewInvoiceHandler(store, pool, func(db database.DBTX) handler.InvoiceStore { return store })
	r := chi.NewRouter()
	r.Route("/invoices", h.RegisterRoutes)
	return r, tx
}

func defaultInvoiceStore() *mockInvoiceStore {
	return &mockInvoiceStore{
		supplier: database.Supplier{ID: 1, Name: "Pro Shop Co"},
		settings: map[string]string{"default_wht_rate": "3.00"},
	}
}

func TestCreateInvoice_WithholdingTax(t *testing.T) {
	store := defaultInvoiceStore()
	router, tx := setupInvoiceRouter(store)

	body := strings.NewReader(`{
		"supplier_id": 1,
		"invoice_number": "202508-001",
		"invoice_date": "2025-08-25",
		"items": [
			{"description": "Coaching services", "amount": "8000.00"},
			{"description": "Equipment rental", "amount": "2000.00"}
		]
	}`)
	req := httptest.NewRequest("POST", "/invoices", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	// subtotal 10000.00 at the default 3% rate: wht 300.00, total 9700.00
	if resp["subtotal"] != "10000.00" {
		t.Errorf("subtotal: got %v, want 10000.00", resp["subtotal"])
	}
	if resp["wht_amount"] != "300.00" {
		t.Errorf("wht_amount: got %v, want 300.00", resp["wht_amount"])
	}
	if resp["total"] != "9700.00" {
		t.Errorf("total: got %v, want 9700.00", resp["total"])
	}
	if len(store.createdItems) != 2 {
		t.Errorf("items created: got %d, want 2", len(store.createdItems))
	}
	if !tx.committed {
		t.Error("transaction should have been committed")
	}
}

func TestCreateInvoice_ExplicitRate(t *testing.T) {
	store := defaultInvoiceStore()
	router, _ := setupInvoiceRouter(store)

	body := strings.NewReader(`{
		"supplier_id": 1,
		"invoice_number": "202508-002",
		"invoice_date": "2025-08-25",
		"wht_rate": "5",
		"items": [{"description": "Consulting", "amount": "1000.00"}]
	}`)
	req := httptest.NewRequest("POST", "/invoices", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["wht_amount"] != "50.00" || resp["total"] != "950.00" {
		t.Errorf("wht: got %v / total %v, want 50.00 / 950.00", resp["wht_amount"], resp["total"])
	}
}

func TestCreateInvoice_SupplierNotFound(t *testing.T) {
	store := defaultInvoiceStore()
	store.supplierErr = pgx.ErrNoRows
	router, tx := setupInvoiceRouter(store)

	body := strings.NewReader(`{
		"supplier_id": 42,
		"invoice_number": "202508-003",
		"invoice_date": "2025-08-25",
		"items": [{"description": "Consulting", "amount": "1000.00"}]
	}`)
	req := httptest.NewRequest("POST", "/invoices", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if tx.committed {
		t.Error("transaction must not commit on missing supplier")
	}
}

func TestCreateInvoice_RejectsBadItems(t *testing.T) {
	router, _ := setupInvoiceRouter(defaultInvoiceStore())

	cases := []string{
		`{"supplier_id":1,"invoice_number":"X","invoice_date":"2025-08-25","items":[]}`,
		`{"supplier_id":1,"invoice_number":"X","invoice_date":"2025-08-25","items":[{"description":"","amount":"100"}]}`,
		`{"supplier_id":1,"invoice_number":"X","invoice_date":"2025-08-25","items":[{"description":"ok","amount":"-5"}]}`,
		`{"supplier_id":1,"invoice_number":"X","invoice_date":"25/08/2025","items":[{"description":"ok","amount":"100"}]}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/invoices", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want 400", body, rec.Code)
		}
	}
}

func TestGetInvoice_WithItems(t *testing.T) {
	store := defaultInvoiceStore()
	store.invoices = []database.Invoice{{
		ID:            7,
		SupplierID:    1,
		InvoiceNumber: "202508-001",
		InvoiceDate:   toDate("2025-08-25"),
		Subtotal:      toNumeric("10000.00"),
		WhtRate:       toNumeric("3.00"),
		WhtAmount:     toNumeric("300.00"),
		Total:         toNumeric("9700.00"),
		CreatedAt:     time.Now(),
	}}
	store.items = []database.InvoiceItem{
		{ID: 1, InvoiceID: 7, Description: "Coaching services", Amount: toNumeric("8000.00")},
		{ID: 2, InvoiceID: 7, Description: "Equipment rental", Amount: toNumeric("2000.00")},
	}
	router, _ := setupInvoiceRouter(store)

	req := httptest.NewRequest("GET", "/invoices/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	items, _ := resp["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items: got %d, want 2", len(items))
	}
}

func TestGetInvoice_NotFound(t *testing.T) {
	router, _ := setupInvoiceRouter(defaultInvoiceStore())

	req := httptest.NewRequest("GET", "/invoices/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}
