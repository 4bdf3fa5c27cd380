package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/tasks"
	"gorm.io/gorm"
)

var (
	// ErrAdminSelfDelete is returned when an administrator tries to
	// remove their own account; admins must be deleted by another
	// admin so the system never loses its last one by accident.
	ErrAdminSelfDelete = errors.New("administrators cannot delete their own account")

	// ErrInvalidChangeToken is returned for an unknown or already
	// consumed email-change confirmation token.
	ErrInvalidChangeToken = errors.New("invalid or expired email change token")
)

// Service implements self-service profile operations.
type Service struct {
	db       *gorm.DB
	jwt      *auth.JWTService
	enqueuer auth.Enqueuer
	logger   *slog.Logger
}

func NewService(db *gorm.DB, jwt *auth.JWTService, enqueuer auth.Enqueuer, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, enqueuer: enqueuer, logger: logger}
}

func (s *Service) getUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateName changes the user's display name.
func (s *Service) UpdateName(ctx context.Context, userID uuid.UUID, firstName, lastName string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	}).Error
}

// ChangePassword verifies the current password before storing the new
// hash.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return auth.ErrWrongPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
}

// RequestEmailChange starts the two-phase email change: the live email
// is untouched, the new address and a random confirmation token are
// stored, and a confirmation link is mailed to the new address.
func (s *Service) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", newEmail).First(&existing).Error; err == nil {
		return auth.ErrEmailTaken
	}

	token := uuid.NewString()
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"pending_email":      newEmail,
		"email_change_token": token,
	}).Error
	if err != nil {
		return err
	}

	task, err := tasks.NewEmailChangeEmailTask(newEmail, token)
	if err != nil {
		s.logger.Error("failed to build email change task", "error", err)
		return nil
	}
	if s.enqueuer == nil {
		s.logger.Warn("no task queue configured, dropping email change mail")
		return nil
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		s.logger.Error("failed to enqueue email change mail", "error", err)
	}
	return nil
}

// ConfirmEmailChange redeems the confirmation token: email becomes
// pending_email and the pending fields are cleared. The duplicate
// check is repeated here because another account may have claimed the
// address between request and confirmation.
func (s *Service) ConfirmEmailChange(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidChangeToken
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email_change_token = ?", token).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidChangeToken
		}
		return nil, err
	}
	if user.PendingEmail == "" {
		return nil, ErrInvalidChangeToken
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", user.PendingEmail).First(&existing).Error; err == nil {
		return nil, auth.ErrEmailTaken
	}

	newEmail := user.PendingEmail
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"email":              newEmail,
		"pending_email":      "",
		"email_change_token": "",
	}).Error
	if err != nil {
		return nil, err
	}

	user.Email = newEmail
	user.PendingEmail = ""
	user.EmailChangeToken = ""
	return &user, nil
}

// SetAvatar stores the new avatar path and returns the previous one so
// the caller can remove the old file.
func (s *Service) SetAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) (string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}

	previous := user.AvatarPath
	if err := s.db.WithContext(ctx).Model(user).Update("avatar_path", avatarPath).Error; err != nil {
		return "", err
	}
	return previous, nil
}

// Delete removes the account after re-verifying the password. With
// cascade the user's polls go too (options and votes included);
// otherwise the polls are orphaned by nulling their creator.
// Administrators are refused.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, password string, cascade bool) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return ErrAdminSelfDelete
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return auth.ErrWrongPassword
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cascade {
			if err := polls.DeleteAllByCreator(tx, user.ID); err != nil {
				return err
			}
		} else {
			err := tx.Model(&models.Poll{}).
				Where("creator_id = ?", user.ID).
				Update("creator_id", nil).Error
			if err != nil {
				return err
			}
		}
		return tx.Delete(user).Error
	})
}
