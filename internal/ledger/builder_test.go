package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lengolf/ledger-api/internal/database"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
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

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockSyncStore implements SyncStore and records the mutations it receives.
type mockSyncStore struct {
	cutoff    database.CutoffConfig
	cutoffErr error

	purges    []time.Time
	deletes   []database.DeleteLedgerWindowParams
	inserts   []database.InsertLedgerRecordParams
	insertErr error

	completed *database.CompleteSyncBatchParams
}

func (m *mockSyncStore) GetActiveCutoff(ctx context.Context) (database.CutoffConfig, error) {
	if m.cutoffErr != nil {
		return database.CutoffConfig{}, m.cutoffErr
	}
	return m.cutoff, nil
}

func (m *mockSyncStore) AcquireSyncLock(ctx context.Context) error { return nil }

func (m *mockSyncStore) DeleteReclassifiedRows(ctx context.Context, cutoff time.Time) (int64, error) {
	m.purges = append(m.purges, cutoff)
	return 0, nil
}

func (m *mockSyncStore) DeleteLedgerWindow(ctx context.Context, arg database.DeleteLedgerWindowParams) (int64, error) {
	m.deletes = append(m.deletes, arg)
	return 0, nil
}

func (m *mockSyncStore) InsertLedgerRecord(ctx context.Context, arg database.InsertLedgerRecordParams) (database.SalesLedgerRecord, error) {
	if m.insertErr != nil {
		return database.SalesLedgerRecord{}, m.insertErr
	}
	m.inserts = append(m.inserts, arg)
	return database.SalesLedgerRecord{
		ReceiptNumber: arg.ReceiptNumber,
		LineNumber:    arg.LineNumber,
		Source:        arg.Source,
	}, nil
}

func (m *mockSyncStore) CreateSyncBatch(ctx context.Context, id uuid.UUID) (database.SyncBatch, error) {
	return database.SyncBatch{ID: id, StartedAt: time.Now(), Status: "running"}, nil
}

func (m *mockSyncStore) CompleteSyncBatch(ctx context.Context, arg database.CompleteSyncBatchParams) (database.SyncBatch, error) {
	m.completed = &arg
	return database.SyncBatch{
		ID:              arg.ID,
		Status:          arg.Status,
		LegacyProcessed: arg.LegacyProcessed,
		LegacyInserted:  arg.LegacyInserted,
		LegacySkipped:   arg.LegacySkipped,
		PosProcessed:    arg.PosProcessed,
		PosInserted:     arg.PosInserted,
		PosSkipped:      arg.PosSkipped,
		ErrorDetail:     arg.ErrorDetail,
		CompletedAt:     pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}, nil
}

// spyNotifier records batch events.
type spyNotifier struct {
	events []string
}

func (s *spyNotifier) NotifyBatch(event string, batch database.SyncBatch) {
	s.events = append(s.events, event)
}

// --- Test helpers ---

func activeCutoff(date string) database.CutoffConfig {
	return database.CutoffConfig{ID: 1, CutoffDate: makeDate(date), IsActive: true}
}

func newTestBuilder(store *mockSyncStore, legacy *mockLegacyStore, pos *mockPosStore, notifier Notifier) *Builder {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) SyncStore { return store }
	return NewBuilder(pool, store, newStore, NewLegacyLoader(legacy, testVATRate()), NewAggregator(pos, testVATRate()), time.Minute, notifier)
}

func insertedBySource(store *mockSyncStore) map[string][]string {
	out := make(map[string][]string)
	for _, ins := range store.inserts {
		out[ins.Source] = append(out[ins.Source], ins.ReceiptNumber)
	}
	return out
}

// =====================
// Partitioning tests
// =====================

func TestSync_PartitionsByCutoff(t *testing.T) {
	// Cutoff 2025-08-08: legacy owns dates on or before it, the new
	// system owns everything after.
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}

	legacy := &mockLegacyStore{
		staging: []database.LegacyStagingRow{
			stagingRow(1, "L100", "", "GOLF 1H", "2025-08-08", "1", "107.00"), // on boundary: kept
			stagingRow(2, "L101", "", "GOLF 1H", "2025-08-09", "1", "107.00"), // past cutoff: excluded
		},
	}

	keptTx := paidTransaction("R20250809-0001", "2025-08-09", "214.00")
	lateTx := paidTransaction("R20250808-0001", "2025-08-08", "107.00")
	pos := &mockPosStore{
		transactions: []database.PosTransaction{keptTx, lateTx},
		lines: []database.PosLineItem{
			lineItem(keptTx.ID, 1, "Golf Bay (1 Hour)", "214.00", "50.00"),
			lineItem(lateTx.ID, 1, "Beer", "107.00", "40.00"), // on boundary: legacy's side
		},
	}

	builder := newTestBuilder(store, legacy, pos, nil)
	batch, err := builder.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.Status != "completed" {
		t.Fatalf("status: got %s, want completed (error: %s)", batch.Status, batch.ErrorDetail.String)
	}

	got := insertedBySource(store)
	if len(got["legacy"]) != 1 || got["legacy"][0] != "L100" {
		t.Errorf("legacy inserts: got %v, want [L100]", got["legacy"])
	}
	if len(got["new_system"]) != 1 || got["new_system"][0] != "R20250809-0001" {
		t.Errorf("new_system inserts: got %v, want [R20250809-0001]", got["new_system"])
	}

	// The excluded candidates count as skipped, one per source.
	if batch.LegacySkipped != 1 {
		t.Errorf("legacy skipped: got %d, want 1", batch.LegacySkipped)
	}
	if batch.PosSkipped != 1 {
		t.Errorf("pos skipped: got %d, want 1", batch.PosSkipped)
	}
	if batch.LegacyInserted != 1 || batch.PosInserted != 1 {
		t.Errorf("inserted: got legacy=%d pos=%d, want 1/1", batch.LegacyInserted, batch.PosInserted)
	}
}

func TestSync_DeleteWindowSpansKeptDates(t *testing.T) {
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	legacy := &mockLegacyStore{
		staging: []database.LegacyStagingRow{
			stagingRow(1, "L100", "", "GOLF 1H", "2025-07-01", "1", "107.00"),
			stagingRow(2, "L101", "", "GOLF 1H", "2025-08-05", "1", "107.00"),
			stagingRow(3, "L102", "", "GOLF 1H", "2025-07-15", "1", "107.00"),
		},
	}

	builder := newTestBuilder(store, legacy, &mockPosStore{}, nil)
	if _, err := builder.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.deletes) != 1 {
		t.Fatalf("expected 1 delete (legacy only), got %d", len(store.deletes))
	}
	del := store.deletes[0]
	if del.Source != "legacy" {
		t.Errorf("delete source: got %s", del.Source)
	}
	wantStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	if !del.StartDate.Equal(wantStart) || !del.EndDate.Equal(wantEnd) {
		t.Errorf("delete window: got [%v, %v], want [%v, %v]", del.StartDate, del.EndDate, wantStart, wantEnd)
	}
}

func TestSync_EmptyPartitionDeletesNothing(t *testing.T) {
	// No candidates at all: neither source window may be touched.
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	builder := newTestBuilder(store, &mockLegacyStore{}, &mockPosStore{}, nil)

	batch, err := builder.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Status != "completed" {
		t.Errorf("status: got %s, want completed", batch.Status)
	}
	if len(store.deletes) != 0 {
		t.Errorf("expected no deletes, got %d", len(store.deletes))
	}
}

func TestSync_CutoffMovePurgesStrandedRows(t *testing.T) {
	// Under cutoff 2025-08-08 a transaction dated 2025-08-09 lands as
	// new_system. Moving the cutoff to 2025-08-10 reassigns that date to
	// legacy, but every kept new_system date now lies past 2025-08-10, so
	// no per-source window reaches the stale row. The rebuild must issue
	// a wrong-side purge at the new cutoff instead.
	posTx := paidTransaction("R20250809-0001", "2025-08-09", "107.00")
	pos := &mockPosStore{
		transactions: []database.PosTransaction{posTx},
		lines:        []database.PosLineItem{lineItem(posTx.ID, 1, "Beer", "107.00", "40.00")},
		payments: []database.PosPayment{
			payment(posTx.ID, 1, "cash", "107.00", "completed"),
		},
	}
	legacy := &mockLegacyStore{
		staging: []database.LegacyStagingRow{
			stagingRow(1, "L200", "", "GOLF 1H", "2025-08-09", "1", "107.00"),
		},
	}

	first := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	if _, err := newTestBuilder(first, legacy, pos, nil).Sync(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	got := insertedBySource(first)
	if len(got["new_system"]) != 1 {
		t.Fatalf("first run new_system inserts: got %v, want [R20250809-0001]", got["new_system"])
	}

	second := &mockSyncStore{cutoff: activeCutoff("2025-08-10")}
	batch, err := newTestBuilder(second, legacy, pos, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if batch.Status != "completed" {
		t.Fatalf("second run status: got %s (error: %s)", batch.Status, batch.ErrorDetail.String)
	}

	// 2025-08-09 is legacy-owned now; the POS candidate is excluded.
	got = insertedBySource(second)
	if len(got["legacy"]) != 1 || got["legacy"][0] != "L200" {
		t.Errorf("second run legacy inserts: got %v, want [L200]", got["legacy"])
	}
	if len(got["new_system"]) != 0 {
		t.Errorf("second run new_system inserts: got %v, want none", got["new_system"])
	}

	// The purge at the new cutoff is the only thing that can remove the
	// stale new_system row dated 2025-08-09.
	if len(second.purges) != 1 {
		t.Fatalf("expected 1 wrong-side purge, got %d", len(second.purges))
	}
	wantCutoff := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	if !second.purges[0].Equal(wantCutoff) {
		t.Errorf("purge cutoff: got %v, want %v", second.purges[0], wantCutoff)
	}
	for _, del := range second.deletes {
		if del.Source == "new_system" {
			t.Errorf("no new_system window delete expected, got %+v", del)
		}
	}
}

// =====================
// Failure handling tests
// =====================

func TestSync_NoCutoffConfigured(t *testing.T) {
	store := &mockSyncStore{cutoffErr: pgx.ErrNoRows}
	builder := newTestBuilder(store, &mockLegacyStore{}, &mockPosStore{}, nil)

	batch, err := builder.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Status != "failed" {
		t.Fatalf("status: got %s, want failed", batch.Status)
	}
	if !strings.Contains(batch.ErrorDetail.String, ErrCutoffNotConfigured.Error()) {
		t.Errorf("error detail: got %q", batch.ErrorDetail.String)
	}
}

func TestSync_OnePhaseFailureStillReplacesOther(t *testing.T) {
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	legacy := &mockLegacyStore{err: errors.New("staging table unreachable")}

	tx := paidTransaction("R1", "2025-08-09", "107.00")
	pos := &mockPosStore{
		transactions: []database.PosTransaction{tx},
		lines:        []database.PosLineItem{lineItem(tx.ID, 1, "Beer", "107.00", "40.00")},
	}

	notifier := &spyNotifier{}
	builder := newTestBuilder(store, legacy, pos, notifier)
	batch, err := builder.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The batch is failed overall, but the healthy source's window was
	// still replaced.
	if batch.Status != "failed" {
		t.Errorf("status: got %s, want failed", batch.Status)
	}
	if !strings.Contains(batch.ErrorDetail.String, "legacy:") {
		t.Errorf("error detail should name the failed phase, got %q", batch.ErrorDetail.String)
	}
	if batch.PosInserted != 1 {
		t.Errorf("pos inserted: got %d, want 1", batch.PosInserted)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "sync.failed" {
		t.Errorf("notifier events: got %v, want [sync.failed]", notifier.events)
	}
}

func TestSync_InsertFailureRollsBackCounts(t *testing.T) {
	store := &mockSyncStore{
		cutoff:    activeCutoff("2025-08-08"),
		insertErr: errors.New("disk full"),
	}
	legacy := &mockLegacyStore{
		staging: []database.LegacyStagingRow{
			stagingRow(1, "L100", "", "GOLF 1H", "2025-08-01", "1", "107.00"),
		},
	}

	builder := newTestBuilder(store, legacy, &mockPosStore{}, nil)
	batch, err := builder.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Status != "failed" {
		t.Errorf("status: got %s, want failed", batch.Status)
	}
	if batch.LegacyInserted != 0 || batch.PosInserted != 0 {
		t.Errorf("inserted counts must be zeroed on replace failure, got legacy=%d pos=%d",
			batch.LegacyInserted, batch.PosInserted)
	}
}

func TestSync_CompletedEventNotified(t *testing.T) {
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	notifier := &spyNotifier{}
	builder := newTestBuilder(store, &mockLegacyStore{}, &mockPosStore{}, notifier)

	if _, err := builder.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "sync.completed" {
		t.Errorf("notifier events: got %v, want [sync.completed]", notifier.events)
	}
}

// =====================
// Payment payload tests
// =====================

func TestSync_PaymentBreakdownMarshalled(t *testing.T) {
	store := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	tx := paidTransaction("R1", "2025-08-09", "400.00")
	pos := &mockPosStore{
		transactions: []database.PosTransaction{tx},
		lines:        []database.PosLineItem{lineItem(tx.ID, 1, "Beer", "400.00", "100.00")},
		payments: []database.PosPayment{
			payment(tx.ID, 1, "card", "300.00", "completed"),
			payment(tx.ID, 2, "cash", "100.00", "completed"),
		},
	}

	builder := newTestBuilder(store, &mockLegacyStore{}, pos, nil)
	if _, err := builder.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserts) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(store.inserts))
	}

	ins := store.inserts[0]
	if !ins.PaymentMethod.Valid || ins.PaymentMethod.String != "Split Payment (Card, Cash)" {
		t.Errorf("payment method: got %+v", ins.PaymentMethod)
	}
	breakdown := string(ins.PaymentBreakdown)
	if !strings.Contains(breakdown, `"percentage":"75.00"`) || !strings.Contains(breakdown, `"percentage":"25.00"`) {
		t.Errorf("payment breakdown json: got %s", breakdown)
	}
}

// =====================
// Idempotence
// =====================

func TestSync_RepeatRunSameInserts(t *testing.T) {
	legacy := &mockLegacyStore{
		staging: []database.LegacyStagingRow{
			stagingRow(1, "L100", "", "GOLF 1H", "2025-08-01", "1", "107.00"),
			stagingRow(2, "L100", "", "F&B BEER", "2025-08-01", "2", "53.50"),
		},
	}

	first := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	if _, err := newTestBuilder(first, legacy, &mockPosStore{}, nil).Sync(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &mockSyncStore{cutoff: activeCutoff("2025-08-08")}
	if _, err := newTestBuilder(second, legacy, &mockPosStore{}, nil).Sync(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.inserts) != len(second.inserts) {
		t.Fatalf("insert counts differ: %d vs %d", len(first.inserts), len(second.inserts))
	}
	for i := range first.inserts {
		a, b := first.inserts[i], second.inserts[i]
		if a.ReceiptNumber != b.ReceiptNumber || a.LineNumber != b.LineNumber || a.SaleDate != b.SaleDate {
			t.Errorf("insert %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
	// Same windows deleted both times.
	if len(first.deletes) != len(second.deletes) {
		t.Fatalf("delete counts differ: %d vs %d", len(first.deletes), len(second.deletes))
	}
}
