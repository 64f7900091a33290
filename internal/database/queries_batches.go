package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createSyncBatch = `
INSERT INTO sync_batches (id, status)
VALUES ($1, 'running')
RETURNING id, started_at, completed_at, status,
	legacy_processed, legacy_inserted, legacy_skipped,
	pos_processed, pos_inserted, pos_skipped, error_detail
`

// CreateSyncBatch appends a new running batch record.
func (q *Queries) CreateSyncBatch(ctx context.Context, id uuid.UUID) (SyncBatch, error) {
	row := q.db.QueryRow(ctx, createSyncBatch, id)
	return scanSyncBatch(row)
}

const completeSyncBatch = `
UPDATE sync_batches
SET completed_at = now(),
    status = $2,
    legacy_processed = $3, legacy_inserted = $4, legacy_skipped = $5,
    pos_processed = $6, pos_inserted = $7, pos_skipped = $8,
    error_detail = $9
WHERE id = $1 AND status = 'running'
RETURNING id, started_at, completed_at, status,
	legacy_processed, legacy_inserted, legacy_skipped,
	pos_processed, pos_inserted, pos_skipped, error_detail
`

type CompleteSyncBatchParams struct {
	ID              uuid.UUID
	Status          string
	LegacyProcessed int32
	LegacyInserted  int32
	LegacySkipped   int32
	PosProcessed    int32
	PosInserted     int32
	PosSkipped      int32
	ErrorDetail     pgtype.Text
}

// CompleteSyncBatch finalizes a running batch exactly once. The WHERE
// clause keeps completed batches immutable: a second completion attempt
// matches nothing and returns pgx.ErrNoRows.
func (q *Queries) CompleteSyncBatch(ctx context.Context, arg CompleteSyncBatchParams) (SyncBatch, error) {
	row := q.db.QueryRow(ctx, completeSyncBatch,
		arg.ID,
		arg.Status,
		arg.LegacyProcessed,
		arg.LegacyInserted,
		arg.LegacySkipped,
		arg.PosProcessed,
		arg.PosInserted,
		arg.PosSkipped,
		arg.ErrorDetail,
	)
	return scanSyncBatch(row)
}

const listSyncBatches = `
SELECT id, started_at, completed_at, status,
	legacy_processed, legacy_inserted, legacy_skipped,
	pos_processed, pos_inserted, pos_skipped, error_detail
FROM sync_batches
ORDER BY started_at DESC
LIMIT $1
`

// ListSyncBatches returns recent batches, newest first.
func (q *Queries) ListSyncBatches(ctx context.Context, limit int32) ([]SyncBatch, error) {
	rows, err := q.db.Query(ctx, listSyncBatches, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SyncBatch
	for rows.Next() {
		var b SyncBatch
		if err := rows.Scan(
			&b.ID,
			&b.StartedAt,
			&b.CompletedAt,
			&b.Status,
			&b.LegacyProcessed,
			&b.LegacyInserted,
			&b.LegacySkipped,
			&b.PosProcessed,
			&b.PosInserted,
			&b.PosSkipped,
			&b.ErrorDetail,
		); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const getLastSuccessfulBatch = `
SELECT id, started_at, completed_at, status,
	legacy_processed, legacy_inserted, legacy_skipped,
	pos_processed, pos_inserted, pos_skipped, error_detail
FROM sync_batches
WHERE status = 'completed'
ORDER BY completed_at DESC
LIMIT 1
`

// GetLastSuccessfulBatch returns the most recent completed batch.
// Returns pgx.ErrNoRows when no batch has ever completed.
func (q *Queries) GetLastSuccessfulBatch(ctx context.Context) (SyncBatch, error) {
	return scanSyncBatch(q.db.QueryRow(ctx, getLastSuccessfulBatch))
}

const getLastBatch = `
SELECT id, started_at, completed_at, status,
	legacy_processed, legacy_inserted, legacy_skipped,
	pos_processed, pos_inserted, pos_skipped, error_detail
FROM sync_batches
ORDER BY started_at DESC
LIMIT 1
`

// GetLastBatch returns the most recent batch regardless of outcome.
func (q *Queries) GetLastBatch(ctx context.Context) (SyncBatch, error) {
	return scanSyncBatch(q.db.QueryRow(ctx, getLastBatch))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncBatch(row rowScanner) (SyncBatch, error) {
	var b SyncBatch
	err := row.Scan(
		&b.ID,
		&b.StartedAt,
		&b.CompletedAt,
		&b.Status,
		&b.LegacyProcessed,
		&b.LegacyInserted,
		&b.LegacySkipped,
		&b.PosProcessed,
		&b.PosInserted,
		&b.PosSkipped,
		&b.ErrorDetail,
	)
	return b, err
}
