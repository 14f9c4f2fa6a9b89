package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/client"

	"flight-aggregator/internal/api"
	"flight-aggregator/internal/app"
	"flight-aggregator/internal/booking"
	"flight-aggregator/internal/config"
	"flight-aggregator/internal/database"
	"flight-aggregator/internal/logger"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/queue"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/search"
	"flight-aggregator/internal/temporal/workflows"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Connect to database
	db, err := database.NewDB(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Info("Connected to database")

	c, rdb := app.NewCache(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// Connect to Temporal
	temporalClient, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer temporalClient.Close()

	log.Info("Connected to Temporal")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := app.NewRegistry(cfg, db, c, log)

	rates := revalidate.NewCacheRates(c)
	aggregator := search.NewAggregator(db, registry, db, db, rates, m, log, search.Options{
		SupplierTimeout: cfg.SupplierTimeout,
		CompleteAfter:   cfg.SearchCompleteAfter,
	})
	reconciler := revalidate.NewReconciler(registry, db, db, rates, m, log)
	orchestrator := booking.NewOrchestrator(
		db,
		reconciler,
		workflows.NewTicketer(temporalClient, cfg.TaskQueue, cfg.ConfirmTimeout),
		queue.NewPublisher(cfg.RabbitMQURL, log),
		m,
		log,
		booking.Options{
			EnforceDuplicateGuard: cfg.EnforceDuplicateGuard,
			MaxTicketAttempts:     cfg.MaxTicketAttempts,
		},
	)

	// Create API handler
	handler := api.NewHandler(aggregator, reconciler, orchestrator, log, cfg.DefaultCurrency)

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		Gatherer:  reg,
		JWTSecret: cfg.JWTSecret,
		RateLimit: api.RateLimitMiddleware(rdb, cfg.RateLimitCapacity, cfg.RateLimitRefill, log),
	})

	// Confirm blocks on the ticketing workflow, so writes get the confirm budget
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelhttp.NewHandler(router, "flight-api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ConfirmTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// let in-flight supplier searches persist their batches
	done := make(chan struct{})
	go func() {
		aggregator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Abandoning in-flight supplier searches")
	}

	log.Info("Server exited")
}
