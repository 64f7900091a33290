package database

import (
	"context"
	"time"
)

const getActiveCutoff = `
SELECT id, cutoff_date, reason, is_active, created_at
FROM cutoff_config
WHERE is_active
`

// GetActiveCutoff returns the single active cutoff row. Returns
// pgx.ErrNoRows when no cutoff has been configured yet.
func (q *Queries) GetActiveCutoff(ctx context.Context) (CutoffConfig, error) {
	row := q.db.QueryRow(ctx, getActiveCutoff)
	var c CutoffConfig
	err := row.Scan(&c.ID, &c.CutoffDate, &c.Reason, &c.IsActive, &c.CreatedAt)
	return c, err
}

const deactivateActiveCutoff = `
UPDATE cutoff_config SET is_active = FALSE WHERE is_active
`

// DeactivateActiveCutoff clears the active flag on the current cutoff.
// Returns the number of rows deactivated (0 when none was active).
func (q *Queries) DeactivateActiveCutoff(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateActiveCutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertCutoff = `
INSERT INTO cutoff_config (cutoff_date, reason, is_active)
VALUES ($1, $2, TRUE)
RETURNING id, cutoff_date, reason, is_active, created_at
`

type InsertCutoffParams struct {
	CutoffDate time.Time
	Reason     string
}

// InsertCutoff activates a new cutoff row. The partial unique index on
// is_active rejects a second active row before any ledger mutation.
func (q *Queries) InsertCutoff(ctx context.Context, arg InsertCutoffParams) (CutoffConfig, error) {
	row := q.db.QueryRow(ctx, insertCutoff, arg.CutoffDate, arg.Reason)
	var c CutoffConfig
	err := row.Scan(&c.ID, &c.CutoffDate, &c.Reason, &c.IsActive, &c.CreatedAt)
	return c, err
}

const listCutoffHistory = `
SELECT id, cutoff_date, reason, is_active, created_at
FROM cutoff_config
ORDER BY created_at DESC, id DESC
LIMIT $1
`

// ListCutoffHistory returns recent cutoff rows, newest first.
func (q *Queries) ListCutoffHistory(ctx context.Context, limit int32) ([]CutoffConfig, error) {
	rows, err := q.db.Query(ctx, listCutoffHistory, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CutoffConfig
	for rows.Next() {
		var c CutoffConfig
		if err := rows.Scan(&c.ID, &c.CutoffDate, &c.Reason, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
