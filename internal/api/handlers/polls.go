package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pollbox/pollbox/internal/api/dto"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/storage"
)

// maxUploadSize bounds multipart form parsing, image included.
const maxUploadSize = 5 << 20

type PollHandler struct {
	pollService *polls.Service
	store       *storage.Store
	logger      *slog.Logger
}

func NewPollHandler(pollService *polls.Service, store *storage.Store, logger *slog.Logger) *PollHandler {
	return &PollHandler{pollService: pollService, store: store, logger: logger}
}

// Create accepts either a multipart form (the create_poll page, with an
// optional image) or a JSON body.
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		req       dto.CreatePollRequest
		imagePath string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid form data"})
			return
		}
		req = dto.CreatePollRequest{
			Title:          strings.TrimSpace(r.FormValue("title")),
			Description:    strings.TrimSpace(r.FormValue("description")),
			MultipleChoice: r.FormValue("multiple_choice") != "",
			CheckIP:        r.FormValue("check_ip") != "",
			IsPublic:       r.FormValue("is_public") != "",
			Anonymous:      r.FormValue("anonymous") != "",
			Deadline:       r.FormValue("deadline"),
			Options:        r.Form["options"],
		}

		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			path, err := h.store.Save(header.Filename, file)
			if err != nil {
				h.logger.Error("failed to store poll image", "error", err)
				writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Image upload failed"})
				return
			}
			imagePath = path
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	poll, err := h.pollService.Create(r.Context(), middleware.GetUserID(r.Context()), polls.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		MultipleChoice: req.MultipleChoice,
		CheckIP:        req.CheckIP,
		IsPublic:       req.IsPublic,
		Anonymous:      req.Anonymous,
		Deadline:       req.ParseDeadline(),
		ImagePath:      imagePath,
		Options:        req.Options,
	})
	if err != nil {
		switch err {
		case polls.ErrTooFewOptions:
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "At least two options are required"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create poll"})
		}
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/polls/"+poll.PublicLink, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToPollDTO(poll))
}

// Vote records a submission against a public link. Selections arrive
// as repeated "options" form values or as a JSON body. A successful
// vote sets the per-poll anti-revote cookie for a year.
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	publicLink := chi.URLParam(r, "public_link")

	raw, ok := h.readSelection(w, r)
	if !ok {
		return
	}

	optionIDs := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid option"})
			return
		}
		optionIDs = append(optionIDs, id)
	}

	hasCookie := false
	if _, err := r.Cookie(polls.VotedCookieName(publicLink)); err == nil {
		hasCookie = true
	}

	err := h.pollService.CastVote(r.Context(), publicLink, polls.VoteInput{
		OptionIDs:      optionIDs,
		VoterIP:        middleware.ClientIP(r),
		HasVotedCookie: hasCookie,
	})
	if err != nil {
		h.writeVoteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     polls.VotedCookieName(publicLink),
		Value:    "1",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
	})

	if wantsHTML(r) {
		http.Redirect(w, r, "/polls/"+publicLink+"/results", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Vote recorded"})
}

func (h *PollHandler) readSelection(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req dto.VoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return nil, false
		}
		return req.OptionIDs, true
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid form data"})
		return nil, false
	}
	return r.Form["options"], true
}

func (h *PollHandler) writeVoteError(w http.ResponseWriter, err error) {
	switch err {
	case polls.ErrPollNotFound:
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Poll not found"})
	case polls.ErrPollClosed:
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Poll is closed"})
	case polls.ErrAlreadyVoted:
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "You have already voted in this poll"})
	case polls.ErrVoteLimit:
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Vote limit reached for this address"})
	case polls.ErrNoSelection:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Select at least one option"})
	case polls.ErrInvalidOption:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid option"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to record vote"})
	}
}

// MyPolls lists the session user's polls with vote counts.
func (h *PollHandler) MyPolls(w http.ResponseWriter, r *http.Request) {
	list, err := h.pollService.ByCreator(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load polls"})
		return
	}

	out := make([]dto.PollSummaryDTO, 0, len(list))
	for _, s := range list {
		out = append(out, dto.ToPollSummaryDTO(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PollHandler) UpdateDeadline(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateDeadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var deadline *time.Time
	if req.Deadline != "" {
		t, err := time.Parse(dto.DeadlineLayout, req.Deadline)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Deadline must look like 2006-01-02T15:04"})
			return
		}
		deadline = &t
	}

	poll, err := h.pollService.UpdateDeadline(r.Context(), pollID, actorFrom(r), deadline)
	if err != nil {
		h.writeManageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPollDTO(poll))
}

func (h *PollHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.pollService.ToggleVisibility)
}

func (h *PollHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.pollService.ToggleArchive)
}

func (h *PollHandler) toggle(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, polls.Actor) (*models.Poll, error)) {
	pollID, ok := parseID(w, r)
	if !ok {
		return
	}

	poll, err := op(r.Context(), pollID, actorFrom(r))
	if err != nil {
		h.writeManageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPollDTO(poll))
}

func (h *PollHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseID(w, r)
	if !ok {
		return
	}

	imagePath, err := h.pollService.Delete(r.Context(), pollID, actorFrom(r))
	if err != nil {
		h.writeManageError(w, err)
		return
	}

	if imagePath != "" {
		if err := h.store.Remove(imagePath); err != nil {
			h.logger.Warn("failed to remove poll image", "path", imagePath, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Poll deleted"})
}

func (h *PollHandler) writeManageError(w http.ResponseWriter, err error) {
	switch err {
	case polls.ErrPollNotFound:
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Poll not found"})
	case polls.ErrForbidden:
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not your poll"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Operation failed"})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid poll ID"})
		return uuid.Nil, false
	}
	return id, true
}

func actorFrom(r *http.Request) polls.Actor {
	return polls.Actor{
		UserID:  middleware.GetUserID(r.Context()),
		IsAdmin: middleware.IsAdmin(r.Context()),
	}
}
