package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pollbox/pollbox/internal/account"
	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/storage"
)

type ProfileHandler struct {
	accountService *account.Service
	authService    *auth.Service
	store          *storage.Store
	logger         *slog.Logger
}

func NewProfileHandler(accountService *account.Service, authService *auth.Service, store *storage.Store, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		accountService: accountService,
		authService:    authService,
		store:          store,
		logger:         logger,
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserDTO(user))
}

func (h *ProfileHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	if err := h.accountService.UpdateName(r.Context(), middleware.GetUserID(r.Context()), req.FirstName, req.LastName); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update name"})
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Name updated"})
}

func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	err := h.accountService.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch err {
		case auth.ErrWrongPassword:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Current password is incorrect"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to change password"})
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password changed"})
}

// SetAvatar accepts a multipart form with an "avatar" file. The
// previous image is removed once the new path is stored.
func (h *ProfileHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Expected multipart form"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid form data"})
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Avatar file is required"})
		return
	}
	defer file.Close()

	path, err := h.store.Save(header.Filename, file)
	if err != nil {
		h.logger.Error("failed to store avatar", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Avatar upload failed"})
		return
	}

	previous, err := h.accountService.SetAvatar(r.Context(), middleware.GetUserID(r.Context()), path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update avatar"})
		return
	}
	if previous != "" {
		if err := h.store.Remove(previous); err != nil {
			h.logger.Warn("failed to remove previous avatar", "path", previous, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Avatar updated"})
}

func (h *ProfileHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	err := h.accountService.RequestEmailChange(r.Context(), middleware.GetUserID(r.Context()), req.NewEmail)
	if err != nil {
		switch err {
		case auth.ErrEmailTaken:
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email is already registered"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to request email change"})
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Confirmation email sent to the new address"})
}

// ConfirmEmailChange consumes the emailed confirmation link. The swap
// invalidates the current session, so the cookie is cleared.
func (h *ProfileHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	_, err := h.accountService.ConfirmEmailChange(r.Context(), token)
	if err != nil {
		switch err {
		case account.ErrInvalidChangeToken:
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired confirmation link"})
		case auth.ErrEmailTaken:
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email is already registered"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to confirm email change"})
		}
		return
	}

	clearSessionCookie(w)

	if wantsHTML(r) {
		http.Redirect(w, r, "/?email_changed=1", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Email address updated, please log in again"})
}

func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	avatarPath := ""
	if user, err := h.authService.GetUserByID(r.Context(), userID); err == nil {
		avatarPath = user.AvatarPath
	}

	err := h.accountService.Delete(r.Context(), userID, req.Password, req.Cascade)
	if err != nil {
		switch err {
		case auth.ErrWrongPassword:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Password is incorrect"})
		case account.ErrAdminSelfDelete:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Administrators cannot delete their own account"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete account"})
		}
		return
	}

	if avatarPath != "" {
		if err := h.store.Remove(avatarPath); err != nil {
			h.logger.Warn("failed to remove avatar", "path", avatarPath, "error", err)
		}
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Account deleted"})
}
