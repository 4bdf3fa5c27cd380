package tasks_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/tasks"
	"github.com/pollbox/pollbox/internal/testutil"
)

const retention = 48 * time.Hour

func setupTaskHandler(t *testing.T) (*tasks.Handler, *gorm.DB, *testutil.FakeSender) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	sender := &testutil.FakeSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tasks.NewHandler(db, logger, sender, "http://localhost:8080", retention), db, sender
}

func TestHandler_VerificationEmail(t *testing.T) {
	h, _, sender := setupTaskHandler(t)
	ctx := context.Background()

	task, err := tasks.NewVerificationEmailTask("user@example.com", "the-token")
	require.NoError(t, err)

	require.NoError(t, h.HandleVerificationEmail(ctx, task))
	require.Len(t, sender.Messages, 1)

	msg := sender.Messages[0]
	assert.Equal(t, "user@example.com", msg.To)
	assert.Contains(t, msg.Text, "the-token")
	assert.Contains(t, msg.Text, "http://localhost:8080")
}

func TestHandler_PasswordResetEmail(t *testing.T) {
	h, _, sender := setupTaskHandler(t)
	ctx := context.Background()

	task, err := tasks.NewPasswordResetEmailTask("user@example.com", "reset-token")
	require.NoError(t, err)

	require.NoError(t, h.HandlePasswordResetEmail(ctx, task))
	require.Len(t, sender.Messages, 1)
	assert.Contains(t, sender.Messages[0].Text, "reset-token")
}

func TestHandler_SMTPFailureIsSwallowed(t *testing.T) {
	h, _, sender := setupTaskHandler(t)
	ctx := context.Background()
	sender.Err = assert.AnError

	task, err := tasks.NewVerificationEmailTask("user@example.com", "the-token")
	require.NoError(t, err)

	// Delivery failure must not bubble up into an asynq retry.
	assert.NoError(t, h.HandleVerificationEmail(ctx, task))
}

func TestHandler_CleanupUnverified(t *testing.T) {
	h, db, _ := setupTaskHandler(t)
	ctx := context.Background()

	stale := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(stale).Updates(map[string]interface{}{
		"is_verified": false,
		"created_at":  time.Now().Add(-retention - time.Hour),
	}).Error)

	fresh := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(fresh).Update("is_verified", false).Error)

	verifiedOld := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(verifiedOld).Update("created_at", time.Now().Add(-retention-time.Hour)).Error)

	require.NoError(t, h.HandleCleanupUnverified(ctx, tasks.NewCleanupUnverifiedTask()))

	var remaining []models.User
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, u := range remaining {
		assert.NotEqual(t, stale.ID, u.ID)
	}
}
