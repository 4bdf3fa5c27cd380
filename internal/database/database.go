package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 30
	connectInterval = 2 * time.Second
)

// Connect opens the database with a bounded startup retry loop so the
// service survives the database coming up after it does (the usual
// docker-compose ordering problem).
func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)

	var db *gorm.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: gormLogger,
		})
		if err == nil {
			break
		}
		log.Warn("database unavailable, retrying",
			"attempt", i+1,
			"max_attempts", connectAttempts,
			"error", err,
		)
		time.Sleep(connectInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Poll{},
		&models.Option{},
		&models.Vote{},
	)
}
