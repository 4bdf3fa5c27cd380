package admin_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pollbox/pollbox/internal/admin"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/testutil"
)

const defaultAdminEmail = "admin@admin"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAdminService(t *testing.T) (*admin.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return admin.NewService(db, discardLogger(), defaultAdminEmail), db
}

func TestSeedDefaultAdmin(t *testing.T) {
	t.Run("seeds an empty installation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)

		require.NoError(t, admin.SeedDefaultAdmin(db, discardLogger(), defaultAdminEmail, "admin"))

		var user models.User
		require.NoError(t, db.First(&user, "email = ?", defaultAdminEmail).Error)
		assert.True(t, user.IsAdmin)
		assert.True(t, user.IsVerified)
		assert.True(t, auth.CheckPassword("admin", user.PasswordHash))
	})

	t.Run("does nothing when users already exist", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.CleanupTestDB(t, db)
		testutil.CreateTestUser(t, db)

		require.NoError(t, admin.SeedDefaultAdmin(db, discardLogger(), defaultAdminEmail, "admin"))

		var count int64
		require.NoError(t, db.Model(&models.User{}).Where("email = ?", defaultAdminEmail).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})
}

func TestService_Setup(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the default admin identity", func(t *testing.T) {
		svc, db := setupAdminService(t)
		require.NoError(t, admin.SeedDefaultAdmin(db, discardLogger(), defaultAdminEmail, "admin"))
		var seeded models.User
		require.NoError(t, db.First(&seeded, "email = ?", defaultAdminEmail).Error)

		user, err := svc.Setup(ctx, seeded.ID, admin.SetupInput{
			FirstName: "Real",
			LastName:  "Admin",
			Email:     "real-admin@example.com",
			Password:  "proper-password-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "real-admin@example.com", user.Email)
		assert.True(t, auth.CheckPassword("proper-password-1", user.PasswordHash))
		assert.False(t, svc.IsDefaultAdmin(user))
	})

	t.Run("only the default admin may run setup", func(t *testing.T) {
		svc, db := setupAdminService(t)
		other := testutil.CreateTestAdmin(t, db)

		_, err := svc.Setup(ctx, other.ID, admin.SetupInput{
			FirstName: "X", LastName: "Y",
			Email:    "x@example.com",
			Password: "proper-password-1",
		})
		assert.ErrorIs(t, err, polls.ErrForbidden)
	})

	t.Run("rejects an email already in use", func(t *testing.T) {
		svc, db := setupAdminService(t)
		require.NoError(t, admin.SeedDefaultAdmin(db, discardLogger(), defaultAdminEmail, "admin"))
		var seeded models.User
		require.NoError(t, db.First(&seeded, "email = ?", defaultAdminEmail).Error)
		taken := testutil.CreateTestUser(t, db)

		_, err := svc.Setup(ctx, seeded.ID, admin.SetupInput{
			FirstName: "X", LastName: "Y",
			Email:    taken.Email,
			Password: "proper-password-1",
		})
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestService_CreateAdmin(t *testing.T) {
	svc, _ := setupAdminService(t)
	ctx := context.Background()

	t.Run("new admins are pre-verified", func(t *testing.T) {
		user, err := svc.CreateAdmin(ctx, auth.RegisterInput{
			FirstName: "Second",
			LastName:  "Admin",
			Email:     "second-admin@example.com",
			Password:  "proper-password-1",
		})
		require.NoError(t, err)
		assert.True(t, user.IsAdmin)
		assert.True(t, user.IsVerified)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.CreateAdmin(ctx, auth.RegisterInput{
			FirstName: "Dup",
			LastName:  "Admin",
			Email:     "second-admin@example.com",
			Password:  "proper-password-1",
		})
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestService_ToggleBlock(t *testing.T) {
	svc, db := setupAdminService(t)
	ctx := context.Background()
	actingAdmin := testutil.CreateTestAdmin(t, db)
	target := testutil.CreateTestUser(t, db)

	t.Run("blocks and unblocks", func(t *testing.T) {
		user, err := svc.ToggleBlock(ctx, actingAdmin.ID, target.ID)
		require.NoError(t, err)
		assert.True(t, user.IsBlocked)

		user, err = svc.ToggleBlock(ctx, actingAdmin.ID, target.ID)
		require.NoError(t, err)
		assert.False(t, user.IsBlocked)
	})

	t.Run("self-block is rejected", func(t *testing.T) {
		_, err := svc.ToggleBlock(ctx, actingAdmin.ID, actingAdmin.ID)
		assert.ErrorIs(t, err, admin.ErrSelfAction)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.ToggleBlock(ctx, actingAdmin.ID, uuid.New())
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestService_DeleteUser(t *testing.T) {
	svc, db := setupAdminService(t)
	ctx := context.Background()
	actingAdmin := testutil.CreateTestAdmin(t, db)

	t.Run("self-delete is rejected", func(t *testing.T) {
		err := svc.DeleteUser(ctx, actingAdmin.ID, actingAdmin.ID)
		assert.ErrorIs(t, err, admin.ErrSelfAction)
	})

	t.Run("deleting a user removes their polls and votes", func(t *testing.T) {
		target := testutil.CreateTestUser(t, db)
		poll := testutil.CreateTestPoll(t, db, target.ID)
		testutil.CreateTestVote(t, db, poll, poll.Options[0].ID, "10.0.0.1")

		require.NoError(t, svc.DeleteUser(ctx, actingAdmin.ID, target.ID))

		var userCount, pollCount, voteCount int64
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", target.ID).Count(&userCount).Error)
		require.NoError(t, db.Model(&models.Poll{}).Count(&pollCount).Error)
		require.NoError(t, db.Model(&models.Vote{}).Count(&voteCount).Error)
		assert.Equal(t, int64(0), userCount)
		assert.Equal(t, int64(0), pollCount)
		assert.Equal(t, int64(0), voteCount)
	})
}

func TestService_Search(t *testing.T) {
	svc, db := setupAdminService(t)
	ctx := context.Background()

	user := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"first_name": "Marjorie",
		"last_name":  "Quickfield",
	}).Error)
	poll := testutil.CreateTestPoll(t, db, user.ID)
	require.NoError(t, db.Model(&models.Poll{}).Where("id = ?", poll.ID).Update("title", "Quarterly offsite").Error)
	testutil.CreateTestVote(t, db, poll, poll.Options[0].ID, "10.0.0.1")

	t.Run("users by name substring", func(t *testing.T) {
		rows, err := svc.SearchUsers(ctx, "marjo")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Marjorie", rows[0].User.FirstName)
		assert.Equal(t, int64(1), rows[0].PollCount)
	})

	t.Run("empty query lists everyone", func(t *testing.T) {
		rows, err := svc.SearchUsers(ctx, "")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("polls by title substring with counts and creator", func(t *testing.T) {
		rows, err := svc.SearchPolls(ctx, "offsite")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(1), rows[0].VoteCount)
		assert.Equal(t, user.Email, rows[0].CreatorEmail)
	})

	t.Run("no matches", func(t *testing.T) {
		rows, err := svc.SearchPolls(ctx, "zzz-not-there")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
