package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/enum"
)

// SyncStore defines the DB methods needed by the ledger builder.
// Satisfied by *database.Queries (and its WithTx variant).
type SyncStore interface {
	GetActiveCutoff(ctx context.Context) (database.CutoffConfig, error)
	AcquireSyncLock(ctx context.Context) error
	DeleteReclassifiedRows(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteLedgerWindow(ctx context.Context, arg database.DeleteLedgerWindowParams) (int64, error)
	InsertLedgerRecord(ctx context.Context, arg database.InsertLedgerRecordParams) (database.SalesLedgerRecord, error)
	CreateSyncBatch(ctx context.Context, id uuid.UUID) (database.SyncBatch, error)
	CompleteSyncBatch(ctx context.Context, arg database.CompleteSyncBatchParams) (database.SyncBatch, error)
}

// NewSyncStore creates a SyncStore from a DBTX (pool or tx).
type NewSyncStore func(db database.DBTX) SyncStore

// Notifier receives batch lifecycle events (websocket hub, test spy).
type Notifier interface {
	NotifyBatch(event string, batch database.SyncBatch)
}

// Builder orchestrates one full sync: run both source loaders, partition
// their candidates by the active cutoff, and replace the ledger's
// affected windows non-destructively.
type Builder struct {
	pool     TxBeginner
	store    SyncStore
	newStore NewSyncStore
	legacy   *LegacyLoader
	pos      *Aggregator
	budget   time.Duration
	notifier Notifier
}

// NewBuilder creates a Builder. budget caps the wall clock of one run;
// notifier may be nil.
func NewBuilder(
	pool TxBeginner,
	store SyncStore,
	newStore NewSyncStore,
	legacy *LegacyLoader,
	pos *Aggregator,
	budget time.Duration,
	notifier Notifier,
) *Builder {
	return &Builder{
		pool:     pool,
		store:    store,
		newStore: newStore,
		legacy:   legacy,
		pos:      pos,
		budget:   budget,
		notifier: notifier,
	}
}

// phase is one source loader's outcome.
type phase struct {
	result *LoadResult
	err    error
}

// Sync runs one full pipeline invocation and returns the finalized batch
// record. Pipeline failures are reported on the batch (status failed,
// error detail retained), not as a Go error; the error return is for
// infrastructure failures only (batch row could not even be written).
//
// Both loaders run concurrently; the delete/insert step runs in a single
// transaction under the sync advisory lock, so concurrent invocations
// and cutoff swaps serialize at the one mutual-exclusion point. Repeated
// invocation with unchanged source data yields zero net change.
func (b *Builder) Sync(ctx context.Context) (database.SyncBatch, error) {
	batch, err := b.store.CreateSyncBatch(ctx, uuid.New())
	if err != nil {
		return database.SyncBatch{}, fmt.Errorf("create sync batch: %w", err)
	}
	log.Printf("sync %s: started", batch.ID)

	ctx, cancel := context.WithTimeout(ctx, b.budget)
	defer cancel()

	// Run both source phases concurrently. They only generate
	// candidates here; nothing is written until the replacement tx.
	var legacyPhase, posPhase phase
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		legacyPhase.result, legacyPhase.err = b.legacy.Load(ctx)
	}()
	go func() {
		defer wg.Done()
		posPhase.result, posPhase.err = b.pos.Load(ctx)
	}()
	wg.Wait()

	counts := database.CompleteSyncBatchParams{ID: batch.ID}
	if legacyPhase.result != nil {
		counts.LegacyProcessed = legacyPhase.result.Processed
		counts.LegacySkipped = legacyPhase.result.Skipped
	}
	if posPhase.result != nil {
		counts.PosProcessed = posPhase.result.Processed
		counts.PosSkipped = posPhase.result.Skipped
	}

	var phaseErrs []string
	if legacyPhase.err != nil {
		phaseErrs = append(phaseErrs, fmt.Sprintf("legacy: %v", legacyPhase.err))
	}
	if posPhase.err != nil {
		phaseErrs = append(phaseErrs, fmt.Sprintf("new_system: %v", posPhase.err))
	}

	// One failed phase does not block the other's window replacement,
	// but the batch as a whole is marked failed.
	if legacyPhase.err == nil || posPhase.err == nil {
		if err := b.replaceWindows(ctx, batch.ID, &counts, legacyPhase, posPhase); err != nil {
			phaseErrs = append(phaseErrs, fmt.Sprintf("replace: %v", err))
			counts.LegacyInserted = 0
			counts.PosInserted = 0
		}
	}

	counts.Status = enum.BatchStatusCompleted
	if len(phaseErrs) > 0 {
		counts.Status = enum.BatchStatusFailed
		counts.ErrorDetail = pgtype.Text{String: strings.Join(phaseErrs, "; "), Valid: true}
	}

	// Completion must outlive the sync budget so a timed-out run is
	// still recorded as failed rather than left running forever.
	final, err := b.store.CompleteSyncBatch(context.WithoutCancel(ctx), counts)
	if err != nil {
		return database.SyncBatch{}, fmt.Errorf("complete sync batch: %w", err)
	}

	event := "sync.completed"
	if final.Status == enum.BatchStatusFailed {
		event = "sync.failed"
	}
	if b.notifier != nil {
		b.notifier.NotifyBatch(event, final)
	}
	log.Printf("sync %s: %s (legacy %d/%d/%d, pos %d/%d/%d)",
		final.ID, final.Status,
		final.LegacyProcessed, final.LegacyInserted, final.LegacySkipped,
		final.PosProcessed, final.PosInserted, final.PosSkipped)
	return final, nil
}

// replaceWindows partitions the successful phases' candidates by the
// active cutoff and replaces each source's affected date window inside a
// single transaction. Either the whole replacement commits or none of
// it does.
func (b *Builder) replaceWindows(
	ctx context.Context,
	batchID uuid.UUID,
	counts *database.CompleteSyncBatchParams,
	legacyPhase, posPhase phase,
) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := b.newStore(tx)

	// The one mutual-exclusion point: no other window replacement or
	// cutoff swap may overlap.
	if err := store.AcquireSyncLock(ctx); err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}

	// Read the cutoff after taking the lock so partitioning always uses
	// the cutoff active at rebuild time, never one mid-swap.
	cutoffCfg, err := store.GetActiveCutoff(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCutoffNotConfigured
		}
		return fmt.Errorf("get active cutoff: %w", err)
	}
	cutoff := cutoffCfg.CutoffDate.Time

	// A moved cutoff strands rows inserted under the previous boundary on
	// dates their source no longer owns. The per-source windows below only
	// span KEPT dates and can never reach those rows, so purge them first.
	if purged, err := store.DeleteReclassifiedRows(ctx, cutoff); err != nil {
		return fmt.Errorf("delete reclassified rows: %w", err)
	} else if purged > 0 {
		log.Printf("sync %s: purged %d rows stranded on the wrong side of cutoff %s",
			batchID, purged, cutoff.Format("2006-01-02"))
	}

	// Dates on or before the cutoff belong to the legacy system; dates
	// after it belong to the new system. Candidates falling on the
	// wrong side of the boundary for their source are excluded and
	// counted as skipped: exactly one source is authoritative per date.
	if legacyPhase.err == nil {
		kept, excluded := partition(legacyPhase.result.Candidates, func(c Candidate) bool {
			return !c.SaleDate.After(cutoff)
		})
		counts.LegacySkipped += excluded
		inserted, err := b.replaceSourceWindow(ctx, store, enum.SourceLegacy, batchID, kept)
		if err != nil {
			return fmt.Errorf("legacy window: %w", err)
		}
		counts.LegacyInserted = inserted
	}

	if posPhase.err == nil {
		kept, excluded := partition(posPhase.result.Candidates, func(c Candidate) bool {
			return c.SaleDate.After(cutoff)
		})
		counts.PosSkipped += excluded
		inserted, err := b.replaceSourceWindow(ctx, store, enum.SourceNewSystem, batchID, kept)
		if err != nil {
			return fmt.Errorf("new_system window: %w", err)
		}
		counts.PosInserted = inserted
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// replaceSourceWindow deletes one source's rows inside the window
// spanned by the kept candidates and re-inserts the candidates. An
// empty partition touches nothing: no affected window, no deletion.
func (b *Builder) replaceSourceWindow(
	ctx context.Context,
	store SyncStore,
	source string,
	batchID uuid.UUID,
	candidates []Candidate,
) (int32, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	start, end := candidates[0].SaleDate, candidates[0].SaleDate
	for _, c := range candidates[1:] {
		if c.SaleDate.Before(start) {
			start = c.SaleDate
		}
		if c.SaleDate.After(end) {
			end = c.SaleDate
		}
	}

	if _, err := store.DeleteLedgerWindow(ctx, database.DeleteLedgerWindowParams{
		Source:    source,
		StartDate: start,
		EndDate:   end,
	}); err != nil {
		return 0, fmt.Errorf("delete window: %w", err)
	}

	var inserted int32
	for _, c := range candidates {
		params, err := insertParams(c, source, batchID)
		if err != nil {
			return inserted, err
		}
		if _, err := store.InsertLedgerRecord(ctx, params); err != nil {
			return inserted, fmt.Errorf("insert %s line %d: %w", c.ReceiptNumber, c.LineNumber, err)
		}
		inserted++
	}
	return inserted, nil
}

func insertParams(c Candidate, source string, batchID uuid.UUID) (database.InsertLedgerRecordParams, error) {
	params := database.InsertLedgerRecordParams{
		ReceiptNumber:  c.ReceiptNumber,
		LineNumber:     c.LineNumber,
		SaleDate:       c.SaleDate,
		ProductName:    c.ProductName,
		Quantity:       decimalToNumeric(c.Quantity),
		GrossAmount:    decimalToNumeric(c.GrossAmount),
		NetAmount:      decimalToNumeric(c.NetAmount),
		VATAmount:      decimalToNumeric(c.VATAmount),
		DiscountAmount: decimalToNumeric(c.DiscountAmount),
		CostAmount:     decimalToNumeric(c.CostAmount),
		ProfitAmount:   decimalToNumeric(c.ProfitAmount),
		IsVoided:       c.IsVoided,
		Source:         source,
		BatchID:        batchID,
	}
	if c.CustomerName != "" {
		params.CustomerName = pgtype.Text{String: c.CustomerName, Valid: true}
	}
	if c.Category != "" {
		params.Category = pgtype.Text{String: c.Category, Valid: true}
	}
	if c.TransactionID != uuid.Nil {
		params.TransactionID = pgtype.UUID{Bytes: c.TransactionID, Valid: true}
	}
	if c.LineItemID != uuid.Nil {
		params.LineItemID = pgtype.UUID{Bytes: c.LineItemID, Valid: true}
	}
	if c.Payment != nil {
		params.PaymentMethod = pgtype.Text{String: c.Payment.Descriptor, Valid: true}
		breakdown, err := json.Marshal(c.Payment.Breakdown)
		if err != nil {
			return params, fmt.Errorf("marshal payment breakdown: %w", err)
		}
		params.PaymentBreakdown = breakdown
	}
	return params, nil
}

func partition(candidates []Candidate, keep func(Candidate) bool) ([]Candidate, int32) {
	var kept []Candidate
	var excluded int32
	for _, c := range candidates {
		if keep(c) {
			kept = append(kept, c)
		} else {
			excluded++
		}
	}
	return kept, excluded
}
