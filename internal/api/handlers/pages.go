package handlers

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
)

// homePollLimit caps the home page listing.
const homePollLimit = 20

type PageHandler struct {
	pollService *polls.Service
	authService *auth.Service
	templates   *template.Template
}

func NewPageHandler(pollService *polls.Service, authService *auth.Service, templates *template.Template) *PageHandler {
	return &PageHandler{
		pollService: pollService,
		authService: authService,
		templates:   templates,
	}
}

func (h *PageHandler) currentUser(r *http.Request) *models.User {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		return nil
	}
	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.pollService.RecentPublic(r.Context(), homePollLimit)
	if err != nil {
		http.Error(w, "Failed to load polls", http.StatusInternalServerError)
		return
	}

	h.render(w, "index.html", map[string]interface{}{
		"User":  h.currentUser(r),
		"Polls": summaries,
	})
}

func (h *PageHandler) PollPage(w http.ResponseWriter, r *http.Request) {
	publicLink := chi.URLParam(r, "public_link")

	poll, err := h.pollService.GetByLink(r.Context(), publicLink)
	if err != nil {
		if err == polls.ErrPollNotFound {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load poll", http.StatusInternalServerError)
		return
	}

	hasCookie := false
	if _, err := r.Cookie(polls.VotedCookieName(publicLink)); err == nil {
		hasCookie = true
	}
	hasVoted, err := h.pollService.HasVoted(r.Context(), poll, middleware.ClientIP(r), hasCookie)
	if err != nil {
		http.Error(w, "Failed to load poll", http.StatusInternalServerError)
		return
	}

	h.render(w, "poll.html", map[string]interface{}{
		"User":     h.currentUser(r),
		"Poll":     poll,
		"State":    string(polls.PollState(poll, time.Now())),
		"HasVoted": hasVoted,
	})
}

// ResultsPage renders the tabulation. API clients that do not ask for
// HTML get the JSON shape instead.
func (h *PageHandler) ResultsPage(w http.ResponseWriter, r *http.Request) {
	publicLink := chi.URLParam(r, "public_link")

	rs, err := h.pollService.Results(r.Context(), publicLink)
	if err != nil {
		if err == polls.ErrPollNotFound {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load results", http.StatusInternalServerError)
		return
	}

	if !wantsHTML(r) {
		writeJSON(w, http.StatusOK, dto.ToResultsResponse(rs))
		return
	}

	h.render(w, "results.html", map[string]interface{}{
		"User":       h.currentUser(r),
		"Poll":       rs.Poll,
		"TotalVotes": rs.TotalVotes,
		"Options":    rs.Options,
	})
}

// ResetPasswordPage renders the new-password form reached from the
// reset email. The token is only checked when the form is submitted.
func (h *PageHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "reset_password.html", map[string]interface{}{
		"User":  h.currentUser(r),
		"Token": chi.URLParam(r, "token"),
	})
}

type dashboardRow struct {
	Poll      models.Poll
	VoteCount int64
	State     string
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	summaries, err := h.pollService.ByCreator(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to load polls", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	rows := make([]dashboardRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, dashboardRow{
			Poll:      s.Poll,
			VoteCount: s.VoteCount,
			State:     string(polls.PollState(&s.Poll, now)),
		})
	}

	h.render(w, "dashboard.html", map[string]interface{}{
		"User":  user,
		"Polls": rows,
	})
}

func (h *PageHandler) CreatePollPage(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, "create_poll.html", map[string]interface{}{
		"User": user,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data interface{}) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
