package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lengolf/ledger-api/internal/database"
)

// CutoffStore defines the DB methods needed by the cutoff router.
// Satisfied by *database.Queries (and its WithTx variant).
type CutoffStore interface {
	GetActiveCutoff(ctx context.Context) (database.CutoffConfig, error)
	DeactivateActiveCutoff(ctx context.Context) (int64, error)
	InsertCutoff(ctx context.Context, arg database.InsertCutoffParams) (database.CutoffConfig, error)
	AcquireSyncLock(ctx context.Context) error
}

// NewCutoffStore creates a CutoffStore from a DBTX (pool or tx).
type NewCutoffStore func(db database.DBTX) CutoffStore

// CutoffRouter holds the single active partition date and exposes atomic
// read/swap. At most one cutoff row may be active; the swap serializes
// against in-flight ledger rebuilds via the shared advisory lock.
type CutoffRouter struct {
	pool     TxBeginner
	store    CutoffStore
	newStore NewCutoffStore
}

// NewCutoffRouter creates a CutoffRouter.
func NewCutoffRouter(pool TxBeginner, store CutoffStore, newStore NewCutoffStore) *CutoffRouter {
	return &CutoffRouter{pool: pool, store: store, newStore: newStore}
}

// Active returns the currently active cutoff. Returns
// ErrCutoffNotConfigured when none has been set yet.
func (r *CutoffRouter) Active(ctx context.Context) (database.CutoffConfig, error) {
	cfg, err := r.store.GetActiveCutoff(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.CutoffConfig{}, ErrCutoffNotConfigured
		}
		return database.CutoffConfig{}, fmt.Errorf("get active cutoff: %w", err)
	}
	return cfg, nil
}

// Set atomically swaps the active cutoff: the current active row is
// deactivated and the new one inserted inside one transaction holding
// the sync advisory lock, so a swap never interleaves with a window
// replacement. The caller must trigger a full rebuild afterwards,
// because a cutoff change can reclassify historical dates between
// sources.
func (r *CutoffRouter) Set(ctx context.Context, date time.Time, reason string) (database.CutoffConfig, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return database.CutoffConfig{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	if err := store.AcquireSyncLock(ctx); err != nil {
		return database.CutoffConfig{}, fmt.Errorf("acquire sync lock: %w", err)
	}

	if _, err := store.DeactivateActiveCutoff(ctx); err != nil {
		return database.CutoffConfig{}, fmt.Errorf("deactivate cutoff: %w", err)
	}

	cfg, err := store.InsertCutoff(ctx, database.InsertCutoffParams{
		CutoffDate: date,
		Reason:     reason,
	})
	if err != nil {
		if isActiveCutoffConflict(err) {
			return database.CutoffConfig{}, ErrCutoffConflict
		}
		return database.CutoffConfig{}, fmt.Errorf("insert cutoff: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CutoffConfig{}, fmt.Errorf("commit tx: %w", err)
	}
	return cfg, nil
}

// isActiveCutoffConflict checks for a unique violation on the partial
// single-active index (pgconn error code 23505), which means a second
// active row was attempted concurrently. The transaction rolls back, so
// the conflict is rejected before any mutation takes effect.
func isActiveCutoffConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "idx_cutoff_config_single_active"
	}
	return false
}
