package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/pollbox/pollbox/internal/database/models"
)

// Authenticator defines the interface for account authentication flows.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput, defaultAdminEmail string) (*LoginResult, error)
	VerifyAccount(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for session and action tokens.
type TokenService interface {
	GenerateSessionToken(userID uuid.UUID, email string, isAdmin bool) (string, error)
	ValidateSessionToken(tokenString string) (*SessionClaims, error)
	GenerateActionToken(tokenType, email string) (string, error)
	ValidateActionToken(tokenString, wantType string) (string, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)
