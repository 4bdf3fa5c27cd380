package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/pollbox/pollbox/internal/database"
	"github.com/pollbox/pollbox/internal/mailer"
	"github.com/pollbox/pollbox/internal/tasks"
	"github.com/pollbox/pollbox/pkg/config"
	"github.com/pollbox/pollbox/pkg/queue"
	"github.com/pollbox/pollbox/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting pollbox worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	handler := tasks.NewHandler(db, logger, mailer.New(&cfg.SMTP), cfg.Server.BaseURL, cfg.Cleanup.Retention())

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Scheduler drives the recurring unverified-account sweep
	if err := util.ValidateCronExpr(cfg.Cleanup.Schedule); err != nil {
		logger.Error("invalid cleanup schedule", "schedule", cfg.Cleanup.Schedule, "error", err)
		os.Exit(1)
	}
	if next, err := util.NextCronTime(cfg.Cleanup.Schedule, time.Now()); err == nil {
		logger.Info("cleanup sweep scheduled", "schedule", cfg.Cleanup.Schedule, "next_run", next)
	}
	scheduler := queue.NewScheduler(&cfg.Redis)
	if _, err := scheduler.Register(cfg.Cleanup.Schedule, tasks.NewCleanupUnverifiedTask()); err != nil {
		logger.Error("failed to register cleanup schedule", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
