package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Uploads   UploadsConfig
	Admin     AdminConfig
	Cleanup   CleanupConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host    string
	Port    int
	Env     string
	BaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret               string
	SessionExpiryMinutes int
	VerifyExpiryHours    int
	ResetExpiryMinutes   int
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type UploadsConfig struct {
	Dir string
}

// AdminConfig holds the reserved bootstrap administrator identity. The
// account is created only when the users table is empty and must be
// rotated through the one-time setup flow before the admin surface
// becomes usable.
type AdminConfig struct {
	Email    string
	Password string
}

type CleanupConfig struct {
	// Schedule is a cron expression for the unverified-account sweep.
	Schedule string
	// RetentionHours is how long an unverified account may exist
	// before the sweep removes it.
	RetentionHours int
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *SMTPConfig) Configured() bool {
	return s.Host != "" && s.From != ""
}

func (j *JWTConfig) SessionExpiry() time.Duration {
	return time.Duration(j.SessionExpiryMinutes) * time.Minute
}

func (j *JWTConfig) VerifyExpiry() time.Duration {
	return time.Duration(j.VerifyExpiryHours) * time.Hour
}

func (j *JWTConfig) ResetExpiry() time.Duration {
	return time.Duration(j.ResetExpiryMinutes) * time.Minute
}

func (c *CleanupConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_BASE_URL", "http://localhost:8080")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "pollbox")
	v.SetDefault("DATABASE_PASSWORD", "pollbox_secret")
	v.SetDefault("DATABASE_NAME", "pollbox")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_SESSION_EXPIRY_MINUTES", 30)
	v.SetDefault("JWT_VERIFY_EXPIRY_HOURS", 24)
	v.SetDefault("JWT_RESET_EXPIRY_MINUTES", 30)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("UPLOADS_DIR", "static/uploads")
	v.SetDefault("ADMIN_EMAIL", "admin@admin")
	v.SetDefault("ADMIN_PASSWORD", "admin")
	v.SetDefault("CLEANUP_SCHEDULE", "0 * * * *")
	v.SetDefault("CLEANUP_RETENTION_HOURS", 48)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:    v.GetString("SERVER_HOST"),
			Port:    v.GetInt("SERVER_PORT"),
			Env:     v.GetString("SERVER_ENV"),
			BaseURL: strings.TrimRight(v.GetString("SERVER_BASE_URL"), "/"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:               v.GetString("JWT_SECRET"),
			SessionExpiryMinutes: v.GetInt("JWT_SESSION_EXPIRY_MINUTES"),
			VerifyExpiryHours:    v.GetInt("JWT_VERIFY_EXPIRY_HOURS"),
			ResetExpiryMinutes:   v.GetInt("JWT_RESET_EXPIRY_MINUTES"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Uploads: UploadsConfig{
			Dir: v.GetString("UPLOADS_DIR"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		Cleanup: CleanupConfig{
			Schedule:       v.GetString("CLEANUP_SCHEDULE"),
			RetentionHours: v.GetInt("CLEANUP_RETENTION_HOURS"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}
