package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lengolf/ledger-api/internal/config"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/lengolf/ledger-api/internal/handler"
	"github.com/lengolf/ledger-api/internal/ledger"
	"github.com/lengolf/ledger-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route for pipeline events
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, w, r)
	})

	// Sync pipeline wiring. The builder and cutoff router each open their
	// own transactions, so they take the pool plus a store factory.
	legacyLoader := ledger.NewLegacyLoader(queries, cfg.VATRate)
	posAggregator := ledger.NewAggregator(queries, cfg.VATRate)
	newSyncStore := func(db database.DBTX) ledger.SyncStore {
		return database.New(db)
	}
	builder := ledger.NewBuilder(pool, queries, newSyncStore, legacyLoader, posAggregator, cfg.SyncBudget, hub)

	newCutoffStore := func(db database.DBTX) ledger.CutoffStore {
		return database.New(db)
	}
	cutoffRouter := ledger.NewCutoffRouter(pool, queries, newCutoffStore)

	syncHandler := handler.NewSyncHandler(builder, queries)
	syncHandler.RegisterRoutes(r)

	cutoffHandler := handler.NewCutoffHandler(cutoffRouter, builder, hub, queries)
	cutoffHandler.RegisterRoutes(r)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("ERROR: invalid timezone %q, falling back to UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}
	ledgerHandler := handler.NewLedgerHandler(queries, loc)
	ledgerHandler.RegisterRoutes(r)

	monitor := ledger.NewHealthMonitor(queries, cfg.FreshnessThreshold)
	healthHandler := handler.NewHealthHandler(monitor)
	healthHandler.RegisterRoutes(r)

	// Supplier invoicing
	supplierHandler := handler.NewSupplierHandler(queries)
	r.Route("/suppliers", supplierHandler.RegisterRoutes)

	invoiceHandler := handler.NewInvoiceHandler(
		queries,
		pool,
		func(db database.DBTX) handler.InvoiceStore {
			return database.New(db)
		},
	)
	r.Route("/invoices", invoiceHandler.RegisterRoutes)

	settingsHandler := handler.NewSettingsHandler(queries)
	r.Route("/settings", settingsHandler.RegisterRoutes)

	log.Println("Router initialized with all handlers")
	return r
}
