package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pollbox/pollbox/internal/account"
	"github.com/pollbox/pollbox/internal/admin"
	"github.com/pollbox/pollbox/internal/api"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/storage"
	"github.com/pollbox/pollbox/internal/web"
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

	logger.Info("starting pollbox server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Seed the reserved default admin on a fresh install
	if err := admin.SeedDefaultAdmin(db, logger, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Error("failed to seed default admin", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, emails will not be sent", "error", err)
		redisClient = nil
	}

	// Asynq client for background email dispatch
	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	// Upload storage for poll images and avatars
	store, err := storage.New(cfg.Uploads.Dir)
	if err != nil {
		logger.Error("failed to prepare uploads dir", "error", err)
		os.Exit(1)
	}

	// Initialize services
	jwtService := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.SessionExpiry(),
		cfg.JWT.VerifyExpiry(),
		cfg.JWT.ResetExpiry(),
	)

	var enqueuer auth.Enqueuer
	if asynqClient != nil {
		enqueuer = asynqClient
	}
	authService := auth.NewService(db, jwtService, enqueuer, logger)
	accountService := account.NewService(db, jwtService, enqueuer, logger)
	adminService := admin.NewService(db, logger, cfg.Admin.Email)
	pollService := polls.NewService(db, logger)

	// Load templates
	templates, err := web.LoadTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Get static file system
	staticFS, err := web.GetStaticFS()
	if err != nil {
		logger.Error("failed to get static fs", "error", err)
		os.Exit(1)
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		AccountService: accountService,
		AdminService:   adminService,
		PollService:    pollService,
		Store:          store,
		Templates:      templates,
		StaticFS:       staticFS,
		SessionTTL:     cfg.JWT.SessionExpiry(),
		DefaultAdmin:   cfg.Admin.Email,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
