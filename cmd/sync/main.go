package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lengolf/ledger-api/internal/config"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/enum"
	"github.com/lengolf/ledger-api/internal/ledger"
)

// One-shot sync for external schedulers (cron, systemd timers). Exits 0
// when the batch completes, 1 when it fails or cannot run.
func main() {
	cfg := config.Load()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	queries := database.New(pool)

	builder := ledger.NewBuilder(
		pool,
		queries,
		func(db database.DBTX) ledger.SyncStore { return database.New(db) },
		ledger.NewLegacyLoader(queries, cfg.VATRate),
		ledger.NewAggregator(queries, cfg.VATRate),
		cfg.SyncBudget,
		nil,
	)

	batch, err := builder.Sync(ctx)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}

	if batch.Status == enum.BatchStatusFailed {
		log.Printf("sync batch %s failed: %s", batch.ID, batch.ErrorDetail.String)
		os.Exit(1)
	}
	log.Printf("sync batch %s completed: %d legacy, %d new-system, %d skipped",
		batch.ID, batch.LegacyInserted, batch.PosInserted, batch.LegacySkipped+batch.PosSkipped)
}
