package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pollbox/pollbox/internal/admin"
	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/polls"
)

type AdminHandler struct {
	adminService *admin.Service
	authService  *auth.Service
	jwtService   *auth.JWTService
	sessionTTL   time.Duration
}

func NewAdminHandler(adminService *admin.Service, authService *auth.Service, jwtService *auth.JWTService, sessionTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		authService:  authService,
		jwtService:   jwtService,
		sessionTTL:   sessionTTL,
	}
}

type AdminOverviewResponse struct {
	Users []dto.AdminUserDTO `json:"users"`
	Polls []dto.AdminPollDTO `json:"polls"`
}

// Overview lists users and polls, filtered by the q_users and q_polls
// query parameters.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.SearchUsers(r.Context(), r.URL.Query().Get("q_users"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load users"})
		return
	}
	pollRows, err := h.adminService.SearchPolls(r.Context(), r.URL.Query().Get("q_polls"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load polls"})
		return
	}

	resp := AdminOverviewResponse{
		Users: make([]dto.AdminUserDTO, 0, len(users)),
		Polls: make([]dto.AdminPollDTO, 0, len(pollRows)),
	}
	for _, row := range users {
		resp.Users = append(resp.Users, dto.AdminUserDTO{
			ID:         row.User.ID.String(),
			FirstName:  row.User.FirstName,
			LastName:   row.User.LastName,
			Email:      row.User.Email,
			IsVerified: row.User.IsVerified,
			IsAdmin:    row.User.IsAdmin,
			IsBlocked:  row.User.IsBlocked,
			PollCount:  row.PollCount,
			CreatedAt:  row.User.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, row := range pollRows {
		resp.Polls = append(resp.Polls, dto.AdminPollDTO{
			ID:           row.Poll.ID.String(),
			Title:        row.Poll.Title,
			PublicLink:   row.Poll.PublicLink,
			CreatorEmail: row.CreatorEmail,
			VoteCount:    row.VoteCount,
			Archived:     row.Poll.Archived,
			IsPublic:     row.Poll.IsPublic,
			CreatedAt:    row.Poll.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Setup rotates the default admin credentials and reissues the session
// under the new identity.
func (h *AdminHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req dto.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.adminService.Setup(r.Context(), middleware.GetUserID(r.Context()), admin.SetupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrEmailTaken:
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email is already registered"})
		case polls.ErrForbidden:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Setup is only available to the default admin"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Setup failed"})
		}
		return
	}

	// The old session names the retired email; hand out a fresh one.
	token, err := h.jwtService.GenerateSessionToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Setup failed"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})

	writeJSON(w, http.StatusOK, dto.SessionResponse{User: dto.ToUserDTO(user)})
}

func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.adminService.CreateAdmin(r.Context(), auth.RegisterInput{
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
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create admin"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToUserDTO(user))
}

func (h *AdminHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.adminService.ToggleBlock(r.Context(), middleware.GetUserID(r.Context()), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserDTO(user))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), middleware.GetUserID(r.Context()), userID); err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

func (h *AdminHandler) writeUserError(w http.ResponseWriter, err error) {
	switch err {
	case admin.ErrSelfAction:
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Admins cannot target their own account"})
	case auth.ErrUserNotFound:
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Operation failed"})
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}
