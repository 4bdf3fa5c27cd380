package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/tasks"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrWrongPassword = errors.New("wrong password")
	ErrBlockedUser   = errors.New("account is blocked")
	ErrUnverified    = errors.New("account is not verified")
)

// Enqueuer is the slice of asynq.Client the service needs. Email
// dispatch must never block or fail a request, so enqueue errors are
// logged and swallowed.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db       *gorm.DB
	jwt      *JWTService
	enqueuer Enqueuer
	logger   *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, enqueuer: enqueuer, logger: logger}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type LoginInput struct {
	Email    string
	Password string
}

// LoginResult carries the session token plus whether the caller is the
// still-unrotated default administrator, which the handler turns into a
// redirect to the setup flow.
type LoginResult struct {
	Token         string
	User          *models.User
	SetupRequired bool
}

// Register creates an unverified user and dispatches the verification
// email in the background. Registration succeeds even when the email
// can not be enqueued; the user can request a resend.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	s.enqueueVerification(user.Email)

	return &user, nil
}

// Login authenticates a user. Each rejection reason is a distinct
// sentinel error because the UI surfaces them separately.
func (s *Service) Login(ctx context.Context, input LoginInput, defaultAdminEmail string) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.IsBlocked {
		return nil, ErrBlockedUser
	}
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}
	if !user.IsVerified {
		return nil, ErrUnverified
	}

	token, err := s.jwt.GenerateSessionToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:         token,
		User:          &user,
		SetupRequired: user.IsAdmin && user.Email == defaultAdminEmail,
	}, nil
}

// VerifyAccount redeems an email-verification token. Re-verifying an
// already verified account is a no-op, not an error.
func (s *Service) VerifyAccount(ctx context.Context, token string) error {
	email, err := s.jwt.ValidateActionToken(token, TokenTypeEmailVerification)
	if err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.IsVerified {
		return nil
	}
	return s.db.WithContext(ctx).Model(&user).Update("is_verified", true).Error
}

// ResendVerification re-dispatches the verification email for an
// existing unverified account. The handler answers identically whether
// or not the address exists.
func (s *Service) ResendVerification(ctx context.Context, email string) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? AND is_verified = ?", email, false).First(&user).Error; err != nil {
		return
	}
	s.enqueueVerification(user.Email)
}

// RequestPasswordReset enqueues a reset email if the address exists.
// It never reveals whether it did.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return
	}

	token, err := s.jwt.GenerateActionToken(TokenTypePasswordReset, user.Email)
	if err != nil {
		s.logger.Error("failed to generate reset token", "error", err)
		return
	}
	task, err := tasks.NewPasswordResetEmailTask(user.Email, token)
	if err != nil {
		s.logger.Error("failed to build reset email task", "error", err)
		return
	}
	s.enqueue(task)
}

// ResetPassword redeems a password-reset token and stores a new hash.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.jwt.ValidateActionToken(token, TokenTypePasswordReset)
	if err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) enqueueVerification(email string) {
	token, err := s.jwt.GenerateActionToken(TokenTypeEmailVerification, email)
	if err != nil {
		s.logger.Error("failed to generate verification token", "error", err)
		return
	}
	task, err := tasks.NewVerificationEmailTask(email, token)
	if err != nil {
		s.logger.Error("failed to build verification email task", "error", err)
		return
	}
	s.enqueue(task)
}

func (s *Service) enqueue(task *asynq.Task) {
	if s.enqueuer == nil {
		s.logger.Warn("no task queue configured, dropping email task", "type", task.Type())
		return
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		s.logger.Error("failed to enqueue email task", "type", task.Type(), "error", err)
	}
}
