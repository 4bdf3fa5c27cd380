package dto

import (
	"time"

	"github.com/pollbox/pollbox/internal/database/models"
	"github.com/pollbox/pollbox/internal/polls"
)

// DeadlineLayout matches the value of an HTML datetime-local input.
const DeadlineLayout = "2006-01-02T15:04"

type CreatePollRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	MultipleChoice bool     `json:"multiple_choice"`
	CheckIP        bool     `json:"check_ip"`
	IsPublic       bool     `json:"is_public"`
	Anonymous      bool     `json:"anonymous"`
	Deadline       string   `json:"deadline,omitempty"`
	Options        []string `json:"options"`
}

func (r CreatePollRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	usable := 0
	for _, opt := range r.Options {
		if opt != "" {
			usable++
		}
	}
	if usable < 2 {
		errors["options"] = "At least two options are required"
	}
	if r.Deadline != "" {
		if _, err := time.Parse(DeadlineLayout, r.Deadline); err != nil {
			errors["deadline"] = "Deadline must look like 2006-01-02T15:04"
		}
	}

	return errors
}

// ParseDeadline returns the parsed deadline or nil when unset. Call
// Validate first.
func (r CreatePollRequest) ParseDeadline() *time.Time {
	if r.Deadline == "" {
		return nil
	}
	t, err := time.Parse(DeadlineLayout, r.Deadline)
	if err != nil {
		return nil
	}
	return &t
}

type VoteRequest struct {
	// OptionIDs carries the selection. Single-choice polls use only
	// the first entry.
	OptionIDs []string `json:"option_ids"`
}

type UpdateDeadlineRequest struct {
	// Deadline in DeadlineLayout; empty clears the deadline.
	Deadline string `json:"deadline"`
}

type OptionDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type PollDTO struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	MultipleChoice bool        `json:"multiple_choice"`
	CheckIP        bool        `json:"check_ip"`
	IsPublic       bool        `json:"is_public"`
	Anonymous      bool        `json:"anonymous"`
	Archived       bool        `json:"archived"`
	PublicLink     string      `json:"public_link"`
	Deadline       *time.Time  `json:"deadline,omitempty"`
	ImagePath      string      `json:"image_path,omitempty"`
	State          string      `json:"state"`
	CreatedAt      string      `json:"created_at"`
	Options        []OptionDTO `json:"options,omitempty"`
}

func ToPollDTO(p *models.Poll) PollDTO {
	d := PollDTO{
		ID:             p.ID.String(),
		Title:          p.Title,
		Description:    p.Description,
		MultipleChoice: p.MultipleChoice,
		CheckIP:        p.CheckIP,
		IsPublic:       p.IsPublic,
		Anonymous:      p.Anonymous,
		Archived:       p.Archived,
		PublicLink:     p.PublicLink,
		Deadline:       p.Deadline,
		ImagePath:      p.ImagePath,
		State:          string(polls.PollState(p, time.Now())),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	for _, opt := range p.Options {
		d.Options = append(d.Options, OptionDTO{ID: opt.ID.String(), Text: opt.Text})
	}
	return d
}

type PollSummaryDTO struct {
	PollDTO
	VoteCount int64 `json:"vote_count"`
}

func ToPollSummaryDTO(s polls.PollSummary) PollSummaryDTO {
	return PollSummaryDTO{
		PollDTO:   ToPollDTO(&s.Poll),
		VoteCount: s.VoteCount,
	}
}

type OptionResultDTO struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Votes   int64   `json:"votes"`
	Percent float64 `json:"percent"`
}

type ResultsResponse struct {
	Poll       PollDTO           `json:"poll"`
	TotalVotes int64             `json:"total_votes"`
	Options    []OptionResultDTO `json:"options"`
}

func ToResultsResponse(rs *polls.ResultSet) ResultsResponse {
	resp := ResultsResponse{
		Poll:       ToPollDTO(rs.Poll),
		TotalVotes: rs.TotalVotes,
	}
	for _, opt := range rs.Options {
		resp.Options = append(resp.Options, OptionResultDTO{
			ID:      opt.ID.String(),
			Text:    opt.Text,
			Votes:   opt.Votes,
			Percent: opt.Percent,
		})
	}
	return resp
}
