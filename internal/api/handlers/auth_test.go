package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/handlers"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/mailer"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/testutil"
	"github.com/pollbox/pollbox/internal/web"
)

const defaultAdminEmail = "admin@admin"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthTestRouter(t *testing.T) (*chi.Mux, *gorm.DB, *auth.JWTService) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	jwtService := testutil.CreateTestJWTService()

	authService := auth.NewService(db, jwtService, &testutil.FakeEnqueuer{}, discardLogger())
	handler := handlers.NewAuthHandler(authService, defaultAdminEmail, 30*time.Minute)

	templates, err := web.LoadTemplates()
	require.NoError(t, err)
	pageHandler := handlers.NewPageHandler(polls.NewService(db, discardLogger()), authService, templates)

	r := chi.NewRouter()
	r.Post("/api/v1/auth/register", handler.Register)
	r.Post("/api/v1/auth/token", handler.Login)
	r.Get("/api/v1/auth/logout", handler.Logout)
	r.Get("/api/v1/auth/verify/{token}", handler.Verify)
	r.Post("/api/v1/auth/reset_password/{token}", handler.ResetPassword)
	r.Get("/reset-password/{token}", pageHandler.ResetPasswordPage)
	r.Post("/reset-password/{token}", handler.ResetPassword)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(jwtService))
		r.Get("/api/v1/me", handler.Me)
	})

	return r, db, jwtService
}

func TestAuthHandler_Register(t *testing.T) {
	router, _, _ := setupAuthTestRouter(t)

	t.Run("successful registration", func(t *testing.T) {
		body := map[string]string{
			"first_name": "New",
			"last_name":  "User",
			"email":      "newuser@example.com",
			"password":   "securepassword1",
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/register", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.SessionResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "newuser@example.com", resp.User.Email)
		assert.False(t, resp.User.IsVerified)

		// No session until the account is verified.
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := map[string]string{
			"first_name": "New",
			"last_name":  "User",
			"email":      "newuser@example.com",
			"password":   "securepassword1",
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/register", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		body := map[string]string{
			"email":    "not-an-email",
			"password": "short",
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/register", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "email")
		assert.Contains(t, resp.Details, "password")
		assert.Contains(t, resp.Details, "first_name")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	router, db, _ := setupAuthTestRouter(t)
	user := testutil.CreateTestUser(t, db)

	t.Run("successful login sets the session cookie", func(t *testing.T) {
		body := map[string]string{"email": user.Email, "password": "testpassword123"}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
		assert.NotEmpty(t, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("wrong password and unknown email answer alike", func(t *testing.T) {
		for _, body := range []map[string]string{
			{"email": user.Email, "password": "wrong"},
			{"email": "ghost@example.com", "password": "testpassword123"},
		} {
			req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)

			var resp dto.ErrorResponse
			testutil.ParseJSONResponse(t, rr, &resp)
			assert.Equal(t, "Invalid credentials", resp.Error)
		}
	})

	t.Run("blocked account", func(t *testing.T) {
		blocked := testutil.CreateTestUser(t, db)
		require.NoError(t, db.Model(blocked).Update("is_blocked", true).Error)

		body := map[string]string{"email": blocked.Email, "password": "testpassword123"}
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unverified account", func(t *testing.T) {
		unverified := testutil.CreateTestUser(t, db)
		require.NoError(t, db.Model(unverified).Update("is_verified", false).Error)

		body := map[string]string{"email": unverified.Email, "password": "testpassword123"}
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestAuthHandler_VerifyAndSession(t *testing.T) {
	router, db, jwtService := setupAuthTestRouter(t)

	unverified := testutil.CreateTestUser(t, db)
	require.NoError(t, db.Model(unverified).Update("is_verified", false).Error)

	t.Run("verification link activates the account", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypeEmailVerification, unverified.Email)
		require.NoError(t, err)

		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/auth/verify/"+token, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		// Login works afterwards.
		body := map[string]string{"email": unverified.Email, "password": "testpassword123"}
		req = testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bad verification token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/auth/verify/garbage", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("session cookie opens /me", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		token := testutil.GenerateTestToken(t, jwtService, user)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp dto.SessionResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, user.Email, resp.User.Email)
	})

	t.Run("no session is rejected", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/me", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	router, db, jwtService := setupAuthTestRouter(t)
	user := testutil.CreateTestUser(t, db)

	t.Run("valid token resets the password", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypePasswordReset, user.Email)
		require.NoError(t, err)

		body := map[string]string{
			"password":         "replacement-pass-1",
			"confirm_password": "replacement-pass-1",
		}
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/reset_password/"+token, body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		token, err := jwtService.GenerateActionToken(auth.TokenTypePasswordReset, user.Email)
		require.NoError(t, err)

		body := map[string]string{
			"password":         "replacement-pass-1",
			"confirm_password": "different-pass-1",
		}
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/reset_password/"+token, body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// The reset flow must work from the link the email actually contains:
// the rendered URL serves the form, and the form completes the reset.
func TestAuthHandler_ResetLinkFromEmail(t *testing.T) {
	const baseURL = "http://localhost:8080"

	router, db, jwtService := setupAuthTestRouter(t)
	user := testutil.CreateTestUser(t, db)

	token, err := jwtService.GenerateActionToken(auth.TokenTypePasswordReset, user.Email)
	require.NoError(t, err)

	msg := mailer.PasswordResetMessage(baseURL, user.Email, token)
	var link string
	for _, line := range strings.Split(msg.Text, "\n") {
		if strings.HasPrefix(line, baseURL+"/") {
			link = line
			break
		}
	}
	require.NotEmpty(t, link, "reset mail carries no link")
	path := strings.TrimPrefix(link, baseURL)

	t.Run("emailed link serves the form", func(t *testing.T) {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Accept", "text/html")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `name="password"`)
		// The form posts back to the same path.
		assert.Contains(t, rr.Body.String(), path)
	})

	t.Run("submitting the form completes the reset", func(t *testing.T) {
		form := url.Values{
			"password":         {"fresh-password-1"},
			"confirm_password": {"fresh-password-1"},
		}
		req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "text/html")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?password_reset=1", rr.Header().Get("Location"))

		// The new password logs in.
		body := map[string]string{"email": user.Email, "password": "fresh-password-1"}
		loginReq := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/token", body)
		loginRR := httptest.NewRecorder()
		router.ServeHTTP(loginRR, loginReq)
		assert.Equal(t, http.StatusOK, loginRR.Code)
	})
}
