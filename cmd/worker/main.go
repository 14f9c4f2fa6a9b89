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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"flight-aggregator/internal/app"
	"flight-aggregator/internal/config"
	"flight-aggregator/internal/database"
	"flight-aggregator/internal/logger"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/temporal/activities"
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

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics listener stopped: %v", err)
		}
	}()
	registry := app.NewRegistry(cfg, db, c, log)

	// Create worker
	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflows.TicketingWorkflow)

	// Register activities
	supplierActivities := activities.NewSupplierActivities(db, registry, m, log)
	w.RegisterActivity(supplierActivities.BookLeg)
	w.RegisterActivity(supplierActivities.TicketLeg)
	w.RegisterActivity(supplierActivities.FetchOrderDetails)

	ledgerActivities := activities.NewLedgerActivities(db, revalidate.NewCacheRates(c))
	w.RegisterActivity(ledgerActivities.RecordManualIntervention)
	w.RegisterActivity(ledgerActivities.RecordTicketingResult)

	// Start worker
	err = w.Start()
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.WithField("taskQueue", cfg.TaskQueue).Info("Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(ctx)
	log.Info("Worker stopped")
}
