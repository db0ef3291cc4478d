package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	opshttp "carrental-backend/internal/api/http"
	"carrental-backend/internal/config"
	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit ('activate-contracts', 'complete-contracts', 'all')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting contract lifecycle scheduler...", "log_level", cfg.Log.Level)

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	lockTimeout, err := time.ParseDuration(cfg.Booking.LockTimeout)
	if err != nil {
		log.Fatalf("Invalid booking lock timeout %q: %v", cfg.Booking.LockTimeout, err)
	}

	store := postgres.NewStore(db, lockTimeout)
	jobRunner := jobs.NewJobRunner(store, cfg)

	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()

	opsHandler := opshttp.NewOpsHandler(db, jobRunner)
	opsServer := &http.Server{
		Addr:    cfg.GetOpsAddress(),
		Handler: opsHandler.Router(),
	}
	go func() {
		logger.Info("Ops endpoint listening", "addr", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Ops server failed", "error", err)
		}
	}()

	logger.Info("Scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	_ = opsServer.Close()
	cronScheduler.Stop()
	logger.Info("Scheduler stopped. Goodbye!")
}

func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "activate-contracts":
		jobRunner.ActivateConfirmedContracts()
	case "complete-contracts":
		jobRunner.CompleteActiveContracts()
	case "all":
		jobRunner.RunAllLifecycleJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		log.Printf("Available jobs:\n  - activate-contracts\n  - complete-contracts\n  - all\n")
		os.Exit(1)
	}
}
