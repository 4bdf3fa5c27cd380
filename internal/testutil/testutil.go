package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/mailer"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.Poll{},
		&models.Option{},
		&models.Vote{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestUser creates a verified test user
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		FirstName:    "Test",
		LastName:     "User",
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		IsVerified:   true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestAdmin creates a verified administrator
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	if err := db.Model(user).Update("is_admin", true).Error; err != nil {
		t.Fatalf("failed to promote test admin: %v", err)
	}
	user.IsAdmin = true
	return user
}

// CreateTestPoll creates an open poll with the given option texts
func CreateTestPoll(t *testing.T, db *gorm.DB, creatorID uuid.UUID, optionTexts ...string) *models.Poll {
	t.Helper()

	if len(optionTexts) == 0 {
		optionTexts = []string{"Yes", "No"}
	}

	poll := &models.Poll{
		Base: models.Base{
			ID: uuid.New(),
		},
		Title:      "Test Poll " + uuid.New().String()[:8],
		CheckIP:    true,
		IsPublic:   true,
		CreatorID:  &creatorID,
		PublicLink: uuid.NewString(),
	}
	for _, text := range optionTexts {
		poll.Options = append(poll.Options, models.Option{Text: text})
	}

	if err := db.Create(poll).Error; err != nil {
		t.Fatalf("failed to create test poll: %v", err)
	}

	return poll
}

// CreateTestVote records a vote row directly
func CreateTestVote(t *testing.T, db *gorm.DB, poll *models.Poll, optionID uuid.UUID, voterIP string) *models.Vote {
	t.Helper()

	vote := &models.Vote{
		Base: models.Base{
			ID: uuid.New(),
		},
		PollID:   poll.ID,
		OptionID: optionID,
		VoterIP:  voterIP,
		VotedAt:  time.Now(),
	}

	if err := db.Create(vote).Error; err != nil {
		t.Fatalf("failed to create test vote: %v", err)
	}

	return vote
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 30*time.Minute, 24*time.Hour, 30*time.Minute)
}

// GenerateTestToken generates a valid session token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateSessionToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// FakeEnqueuer records enqueued tasks instead of talking to Redis
type FakeEnqueuer struct {
	Tasks []*asynq.Task
	Err   error
}

func (f *FakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Tasks = append(f.Tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

// TypeCount returns how many recorded tasks have the given type
func (f *FakeEnqueuer) TypeCount(taskType string) int {
	n := 0
	for _, task := range f.Tasks {
		if task.Type() == taskType {
			n++
		}
	}
	return n
}

// FakeSender records outgoing mail instead of dialing SMTP
type FakeSender struct {
	Messages []mailer.Message
	Err      error
}

func (f *FakeSender) Send(msg mailer.Message) error {
	if f.Err != nil {
		return f.Err
	}
	f.Messages = append(f.Messages, msg)
	return nil
}

// AuthenticatedRequest creates an HTTP request with a session cookie
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without a session
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}
