package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
)

type AuthHandler struct {
	authService       *auth.Service
	defaultAdminEmail string
	sessionTTL        time.Duration
}

func NewAuthHandler(authService *auth.Service, defaultAdminEmail string, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		defaultAdminEmail: defaultAdminEmail,
		sessionTTL:        sessionTTL,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.authService.Register(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrEmailTaken:
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email is already registered"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed"})
		}
		return
	}

	// No session yet; the account must be verified first.
	writeJSON(w, http.StatusCreated, dto.SessionResponse{User: dto.ToUserDTO(user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	result, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, h.defaultAdminEmail)
	if err != nil {
		switch err {
		case auth.ErrUserNotFound, auth.ErrWrongPassword:
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
		case auth.ErrBlockedUser:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is blocked"})
		case auth.ErrUnverified:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Email address is not verified"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	h.setSessionCookie(w, result.Token)

	writeJSON(w, http.StatusOK, dto.SessionResponse{
		User:          dto.ToUserDTO(result.User),
		SetupRequired: result.SetupRequired,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Verify consumes an email verification link. Browser requests are
// redirected to the home page; API clients get JSON.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.authService.VerifyAccount(r.Context(), token); err != nil {
		switch err {
		case auth.ErrInvalidToken, auth.ErrExpiredToken:
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired verification link"})
		case auth.ErrUserNotFound:
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Verification failed"})
		}
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/?verified=1", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Account verified"})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	// Deliberately silent about whether the email exists.
	h.authService.ResendVerification(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "If the account exists, a new verification email was sent"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	h.authService.RequestPasswordReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "If the account exists, a reset email was sent"})
}

// ResetPassword consumes a reset link. The body is either JSON or the
// reset page's form; browsers are sent back to the home page on
// success.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req dto.ResetPasswordRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid form data"})
			return
		}
		req = dto.ResetPasswordRequest{
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	if err := h.authService.ResetPassword(r.Context(), token, req.Password); err != nil {
		switch err {
		case auth.ErrInvalidToken, auth.ErrExpiredToken:
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired reset link"})
		case auth.ErrUserNotFound:
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Password reset failed"})
		}
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/?password_reset=1", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password updated"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionResponse{User: dto.ToUserDTO(user)})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
