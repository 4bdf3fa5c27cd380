package admin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
	"gorm.io/gorm"
)

// ErrSelfAction is returned when an admin targets their own account
// with block or delete. The request must leave no mutation behind.
var ErrSelfAction = errors.New("admins cannot block or delete their own account")

type Service struct {
	db           *gorm.DB
	logger       *slog.Logger
	defaultEmail string
}

func NewService(db *gorm.DB, logger *slog.Logger, defaultAdminEmail string) *Service {
	return &Service{db: db, logger: logger, defaultEmail: defaultAdminEmail}
}

// IsDefaultAdmin reports whether the user is the still-unrotated
// bootstrap administrator.
func (s *Service) IsDefaultAdmin(user *models.User) bool {
	return user.IsAdmin && user.Email == s.defaultEmail
}

// UserRow is a user listing entry.
type UserRow struct {
	User      models.User `json:"user"`
	PollCount int64       `json:"poll_count"`
}

// PollRow is a poll listing entry with moderation metadata.
type PollRow struct {
	Poll         models.Poll `json:"poll"`
	VoteCount    int64       `json:"vote_count"`
	CreatorEmail string      `json:"creator_email"`
}

// SearchUsers lists users, newest first, optionally filtered by a
// name/email substring.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]UserRow, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}

	rows := make([]UserRow, len(users))
	for i, u := range users {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Poll{}).
			Where("creator_id = ?", u.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		rows[i] = UserRow{User: u, PollCount: count}
	}
	return rows, nil
}

// SearchPolls lists polls, newest first, optionally filtered by a
// title substring, with vote counts and the creator's email (orphaned
// polls report an empty creator).
func (s *Service) SearchPolls(ctx context.Context, query string) ([]PollRow, error) {
	q := s.db.WithContext(ctx).Model(&models.Poll{})
	if query != "" {
		q = q.Where("title LIKE ?", "%"+query+"%")
	}

	var list []models.Poll
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}

	rows := make([]PollRow, len(list))
	for i, p := range list {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Vote{}).
			Where("poll_id = ?", p.ID).Count(&count).Error; err != nil {
			return nil, err
		}

		row := PollRow{Poll: p, VoteCount: count}
		if p.CreatorID != nil {
			var creator models.User
			if err := s.db.WithContext(ctx).First(&creator, "id = ?", *p.CreatorID).Error; err == nil {
				row.CreatorEmail = creator.Email
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// CreateAdmin creates a pre-verified administrator account.
func (s *Service) CreateAdmin(ctx context.Context, input auth.RegisterInput) (*models.User, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, auth.ErrEmailTaken
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		IsVerified:   true,
		IsAdmin:      true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ToggleBlock flips a user's blocked flag. Acting on oneself is
// rejected.
func (s *Service) ToggleBlock(ctx context.Context, adminID, userID uuid.UUID) (*models.User, error) {
	if adminID == userID {
		return nil, ErrSelfAction
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	blocked := !user.IsBlocked
	if err := s.db.WithContext(ctx).Model(&user).Update("is_blocked", blocked).Error; err != nil {
		return nil, err
	}
	user.IsBlocked = blocked
	return &user, nil
}

// DeleteUser removes a user and cascades their polls. Acting on
// oneself is rejected.
func (s *Service) DeleteUser(ctx context.Context, adminID, userID uuid.UUID) error {
	if adminID == userID {
		return ErrSelfAction
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.ErrUserNotFound
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := polls.DeleteAllByCreator(tx, user.ID); err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

// SetupInput rotates the reserved default administrator identity.
type SetupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Setup is the mandatory one-time rotation of the default admin. It is
// only available to that account and re-checks the new email for
// duplicates.
func (s *Service) Setup(ctx context.Context, adminID uuid.UUID, input SetupInput) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	if !s.IsDefaultAdmin(&user) {
		return nil, polls.ErrForbidden
	}

	if input.Email != user.Email {
		var existing models.User
		if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
			return nil, auth.ErrEmailTaken
		}
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"first_name":    input.FirstName,
		"last_name":     input.LastName,
		"email":         input.Email,
		"password_hash": hash,
	}).Error
	if err != nil {
		return nil, err
	}

	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.Email = input.Email
	user.PasswordHash = hash
	return &user, nil
}

// SeedDefaultAdmin creates the bootstrap administrator when the users
// table is empty. Ran once at server startup.
func SeedDefaultAdmin(db *gorm.DB, logger *slog.Logger, email, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user := models.User{
		FirstName:    "Super",
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
		IsAdmin:      true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logger.Warn("created default admin account, rotate it via the setup flow", "email", email)
	return nil
}
