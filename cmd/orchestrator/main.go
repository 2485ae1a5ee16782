// Package main is the entry point for the releaseplane orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"releaseplane/internal/config"
	"releaseplane/internal/controller"
	"releaseplane/internal/engine"
	"releaseplane/internal/logger"
	"releaseplane/internal/observability"
	"releaseplane/internal/provider"
	"releaseplane/internal/store/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Database
	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(store.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "releaseplane-orchestrator", cfg.OTELEndpoint)
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Printf("Failed to shutdown tracer: %v", err)
			}
		}()
	}

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	engineMetrics, err := observability.NewEngineMetrics()
	if err != nil {
		log.Fatalf("Failed to init engine metrics: %v", err)
	}

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("releaseplane-orchestrator")
	_, err = meter.Int64ObservableGauge("releaseplane.releases.active",
		metric.WithDescription("Current number of in-progress releases"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := store.CountActiveReleases(ctx)
			if err != nil {
				log.Printf("Failed to count active releases: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register active release metric: %v", err)
	}

	// Providers are registered by the host deployment; the default binary
	// ships with none and integrations get enabled via wiring code.
	providers := provider.NewRegistry()

	deps := &engine.Deps{
		Releases:   store,
		CronJobs:   store,
		Tasks:      store,
		Cycles:     store,
		Targets:    store,
		Providers:  providers,
		Metrics:    engineMetrics,
		Log:        slogger,
		SlotWindow: cfg.SlotWindow,
	}
	deps.Executor = engine.NewExecutor(providers, store, store, engineMetrics, slogger)
	deps.Gate = engine.NewGate(store, store, store, store, slogger)

	runner := engine.NewRunner(deps, cfg.TickInterval)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, store, runner, metricsHandler)

	go func() {
		log.Printf("Releaseplane orchestrator starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Runner stopped: %v", err)
	}

	log.Println("Shutdown complete")
}
