package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/tasks"
	"github.com/pollbox/pollbox/internal/testutil"
)

const defaultAdminEmail = "admin@admin"

func setupAuthService(t *testing.T) (*auth.Service, *gorm.DB, *testutil.FakeEnqueuer, *auth.JWTService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	jwtService := testutil.CreateTestJWTService()
	enqueuer := &testutil.FakeEnqueuer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewService(db, jwtService, enqueuer, logger), db, enqueuer, jwtService
}

func TestService_Register(t *testing.T) {
	svc, _, enqueuer, _ := setupAuthService(t)
	ctx := context.Background()

	t.Run("creates unverified user and enqueues email", func(t *testing.T) {
		user, err := svc.Register(ctx, auth.RegisterInput{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Password:  "securepassword1",
		})
		require.NoError(t, err)
		assert.False(t, user.IsVerified)
		assert.False(t, user.IsAdmin)
		assert.NotEqual(t, "securepassword1", user.PasswordHash)
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypeVerificationEmail))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{
			FirstName: "Other",
			LastName:  "Person",
			Email:     "ada@example.com",
			Password:  "securepassword1",
		})
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})

	t.Run("succeeds even when the queue is down", func(t *testing.T) {
		enqueuer.Err = assert.AnError
		defer func() { enqueuer.Err = nil }()

		_, err := svc.Register(ctx, auth.RegisterInput{
			FirstName: "Queue",
			LastName:  "Down",
			Email:     "queuedown@example.com",
			Password:  "securepassword1",
		})
		assert.NoError(t, err)
	})
}

func TestService_Login(t *testing.T) {
	svc, db, _, _ := setupAuthService(t)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db)

	t.Run("successful login returns a token", func(t *testing.T) {
		result, err := svc.Login(ctx, auth.LoginInput{
			Email:    user.Email,
			Password: "testpassword123",
		}, defaultAdminEmail)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.False(t, result.SetupRequired)
		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    "nobody@example.com",
			Password: "testpassword123",
		}, defaultAdminEmail)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    user.Email,
			Password: "not-the-password",
		}, defaultAdminEmail)
		assert.ErrorIs(t, err, auth.ErrWrongPassword)
	})

	t.Run("blocked user is rejected before the password check", func(t *testing.T) {
		blocked := testutil.CreateTestUser(t, db)
		require.NoError(t, db.Model(blocked).Update("is_blocked", true).Error)

		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    blocked.Email,
			Password: "wrong-password-too",
		}, defaultAdminEmail)
		assert.ErrorIs(t, err, auth.ErrBlockedUser)
	})

	t.Run("unverified user is rejected", func(t *testing.T) {
		unverified := testutil.CreateTestUser(t, db)
		require.NoError(t, db.Model(unverified).Update("is_verified", false).Error)

		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    unverified.Email,
			Password: "testpassword123",
		}, defaultAdminEmail)
		assert.ErrorIs(t, err, auth.ErrUnverified)
	})

	t.Run("default admin login flags setup", func(t *testing.T) {
		hash, err := auth.HashPassword("admin")
		require.NoError(t, err)
		admin := testutil.CreateTestUser(t, db)
		require.NoError(t, db.Model(admin).Updates(map[string]interface{}{
			"email":         defaultAdminEmail,
			"password_hash": hash,
			"is_admin":      true,
		}).Error)

		result, err := svc.Login(ctx, auth.LoginInput{
			Email:    defaultAdminEmail,
			Password: "admin",
		}, defaultAdminEmail)
		require.NoError(t, err)
		assert.True(t, result.SetupRequired)
	})
}

func TestService_VerifyAccount(t *testing.T) {
	svc, db, _, jwtService := setupAuthService(t)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(user).Update("is_verified", false).Error)

	t.Run("valid token verifies the account", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypeEmailVerification, user.Email)
		require.NoError(t, err)

		require.NoError(t, svc.VerifyAccount(ctx, token))

		fresh, err := svc.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, fresh.IsVerified)
	})

	t.Run("re-verifying is a no-op", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypeEmailVerification, user.Email)
		require.NoError(t, err)
		assert.NoError(t, svc.VerifyAccount(ctx, token))
	})

	t.Run("garbage token", func(t *testing.T) {
		err := svc.VerifyAccount(ctx, "not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("reset token cannot verify an account", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypePasswordReset, user.Email)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.VerifyAccount(ctx, token), auth.ErrInvalidToken)
	})
}

func TestService_ResendVerification(t *testing.T) {
	svc, db, enqueuer, _ := setupAuthService(t)
	ctx := context.Background()

	unverified := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(unverified).Update("is_verified", false).Error)
	verified := testutil.CreateTestUser(t, db)

	t.Run("enqueues for unverified accounts", func(t *testing.T) {
		svc.ResendVerification(ctx, unverified.Email)
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypeVerificationEmail))
	})

	t.Run("silent for verified accounts", func(t *testing.T) {
		svc.ResendVerification(ctx, verified.Email)
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypeVerificationEmail))
	})

	t.Run("silent for unknown addresses", func(t *testing.T) {
		svc.ResendVerification(ctx, "nobody@example.com")
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypeVerificationEmail))
	})
}

func TestService_PasswordReset(t *testing.T) {
	svc, db, enqueuer, jwtService := setupAuthService(t)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db)

	t.Run("request enqueues for known addresses only", func(t *testing.T) {
		svc.RequestPasswordReset(ctx, user.Email)
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypePasswordResetEmail))

		svc.RequestPasswordReset(ctx, "nobody@example.com")
		assert.Equal(t, 1, enqueuer.TypeCount(tasks.TypePasswordResetEmail))
	})

	t.Run("reset changes the password", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypePasswordReset, user.Email)
		require.NoError(t, err)

		require.NoError(t, svc.ResetPassword(ctx, token, "brand-new-password"))

		_, err = svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: "testpassword123"}, defaultAdminEmail)
		assert.ErrorIs(t, err, auth.ErrWrongPassword)

		result, err := svc.Login(ctx, auth.LoginInput{Email: user.Email, Password: "brand-new-password"}, defaultAdminEmail)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("verification token cannot reset a password", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypeEmailVerification, user.Email)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.ResetPassword(ctx, token, "whatever-password"), auth.ErrInvalidToken)
	})
}
