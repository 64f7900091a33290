package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/enum"
)

// HealthStore defines the DB reads needed by the health monitor.
// Satisfied by *database.Queries.
type HealthStore interface {
	GetLedgerSourceStats(ctx context.Context) ([]database.GetLedgerSourceStatsRow, error)
	GetLastSuccessfulBatch(ctx context.Context) (database.SyncBatch, error)
	GetLastBatch(ctx context.Context) (database.SyncBatch, error)
}

// SourceHealth summarizes one source's slice of the ledger.
type SourceHealth struct {
	RecordCount  int64  `json:"record_count"`
	LatestDate   string `json:"latest_date,omitempty"`
	GrossRevenue string `json:"gross_revenue"`
	NetRevenue   string `json:"net_revenue"`
}

// HealthSummary is the read-only observability surface for external
// alerting. Consumers use it to detect stale or partially-failed
// batches instead of silently reading incomplete totals.
type HealthSummary struct {
	Legacy    SourceHealth `json:"legacy"`
	NewSystem SourceHealth `json:"new_system"`

	LastSuccessfulBatchAt *time.Time `json:"last_successful_batch_at,omitempty"`
	LastBatchStatus       string     `json:"last_batch_status,omitempty"`
	LastBatchError        string     `json:"last_batch_error,omitempty"`

	// Stale is set when the last successful batch is older than the
	// freshness threshold (or no batch ever succeeded).
	Stale bool `json:"stale"`

	// LastBatchFailed is set when the most recent batch did not
	// complete successfully.
	LastBatchFailed bool `json:"last_batch_failed"`
}

// HealthMonitor is a pure read-model over the ledger and batch history.
// No side effects.
type HealthMonitor struct {
	store     HealthStore
	freshness time.Duration
}

// NewHealthMonitor creates a HealthMonitor with the given freshness
// threshold.
func NewHealthMonitor(store HealthStore, freshness time.Duration) *HealthMonitor {
	return &HealthMonitor{store: store, freshness: freshness}
}

// Summary computes the current health summary as of now.
func (m *HealthMonitor) Summary(ctx context.Context, now time.Time) (*HealthSummary, error) {
	stats, err := m.store.GetLedgerSourceStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger source stats: %w", err)
	}

	summary := &HealthSummary{
		Legacy:    emptySourceHealth(),
		NewSystem: emptySourceHealth(),
		Stale:     true,
	}
	for _, s := range stats {
		h := SourceHealth{
			RecordCount:  s.RecordCount,
			GrossRevenue: numericToDecimal(s.GrossRevenue).StringFixed(2),
			NetRevenue:   numericToDecimal(s.NetRevenue).StringFixed(2),
		}
		if s.LatestDate.Valid {
			h.LatestDate = s.LatestDate.Time.Format("2006-01-02")
		}
		switch s.Source {
		case enum.SourceLegacy:
			summary.Legacy = h
		case enum.SourceNewSystem:
			summary.NewSystem = h
		}
	}

	last, err := m.store.GetLastBatch(ctx)
	switch {
	case err == nil:
		summary.LastBatchStatus = last.Status
		summary.LastBatchFailed = last.Status == enum.BatchStatusFailed
		if last.ErrorDetail.Valid {
			summary.LastBatchError = last.ErrorDetail.String
		}
	case errors.Is(err, pgx.ErrNoRows):
		// No batch has ever run; the zero summary already says stale.
	default:
		return nil, fmt.Errorf("last batch: %w", err)
	}

	success, err := m.store.GetLastSuccessfulBatch(ctx)
	switch {
	case err == nil:
		t := success.CompletedAt.Time
		summary.LastSuccessfulBatchAt = &t
		summary.Stale = now.Sub(t) > m.freshness
	case errors.Is(err, pgx.ErrNoRows):
		summary.Stale = true
	default:
		return nil, fmt.Errorf("last successful batch: %w", err)
	}

	return summary, nil
}

func emptySourceHealth() SourceHealth {
	return SourceHealth{GrossRevenue: "0.00", NetRevenue: "0.00"}
}
