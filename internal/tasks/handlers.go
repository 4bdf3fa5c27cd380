package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/mailer"
	"gorm.io/gorm"
)

// Sender abstracts the SMTP mailer for tests.
type Sender interface {
	Send(msg mailer.Message) error
}

type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	mailer    Sender
	baseURL   string
	retention time.Duration
}

func NewHandler(db *gorm.DB, logger *slog.Logger, sender Sender, baseURL string, retention time.Duration) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		mailer:    sender,
		baseURL:   baseURL,
		retention: retention,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVerificationEmail, h.HandleVerificationEmail)
	mux.HandleFunc(TypePasswordResetEmail, h.HandlePasswordResetEmail)
	mux.HandleFunc(TypeEmailChangeEmail, h.HandleEmailChangeEmail)
	mux.HandleFunc(TypeCleanupUnverified, h.HandleCleanupUnverified)
}

func (h *Handler) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	return h.sendTokenMail(t, mailer.VerificationMessage)
}

func (h *Handler) HandlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	return h.sendTokenMail(t, mailer.PasswordResetMessage)
}

func (h *Handler) HandleEmailChangeEmail(ctx context.Context, t *asynq.Task) error {
	return h.sendTokenMail(t, mailer.EmailChangeMessage)
}

// sendTokenMail delivers one transactional mail. SMTP failures are
// logged and swallowed: user flows must not depend on delivery, and a
// returned error would only trigger retries we do not want.
func (h *Handler) sendTokenMail(t *asynq.Task, build func(baseURL, to, token string) mailer.Message) error {
	var payload EmailTokenPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := build(h.baseURL, payload.Email, payload.Token)
	if err := h.mailer.Send(msg); err != nil {
		h.logger.Error("email dispatch failed",
			"type", t.Type(),
			"to", payload.Email,
			"error", err,
		)
		return nil
	}

	h.logger.Info("email sent", "type", t.Type(), "to", payload.Email)
	return nil
}

// HandleCleanupUnverified removes unverified accounts older than the
// retention window. Row-level deletes only, so the sweep is safe to
// run alongside live requests.
func (h *Handler) HandleCleanupUnverified(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-h.retention)

	result := h.db.WithContext(ctx).
		Where("is_verified = ? AND created_at < ?", false, cutoff).
		Delete(&models.User{})
	if result.Error != nil {
		return fmt.Errorf("deleting expired unverified users: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		h.logger.Info("removed expired unverified accounts", "count", result.RowsAffected)
	}
	return nil
}
