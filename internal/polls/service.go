package polls

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pollbox/pollbox/internal/database/models"
	"gorm.io/gorm"
)

// MaxVotesPerIP is the cap on vote rows sharing one (poll, IP) pair
// when the poll's IP check is enabled. The anti-revote cookie is the
// primary barrier; this is the backstop for cookie clearing.
const MaxVotesPerIP = 3

// State is the poll lifecycle state. EXPIRED is never stored: it is
// recomputed from the deadline on every read.
type State string

const (
	StateOpen     State = "open"
	StateExpired  State = "expired"
	StateArchived State = "archived"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Actor identifies who is performing a management operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (a Actor) mayManage(p *models.Poll) bool {
	if a.IsAdmin {
		return true
	}
	return p.CreatorID != nil && *p.CreatorID == a.UserID
}

// PollState derives the lifecycle state at the given instant. Archived
// wins over expired.
func PollState(p *models.Poll, now time.Time) State {
	if p.Archived {
		return StateArchived
	}
	if p.Deadline != nil && now.After(*p.Deadline) {
		return StateExpired
	}
	return StateOpen
}

type CreateInput struct {
	Title          string
	Description    string
	MultipleChoice bool
	CheckIP        bool
	IsPublic       bool
	Anonymous      bool
	Deadline       *time.Time
	ImagePath      string
	Options        []string
}

// Create stores a poll and its options in one transaction. Blank
// option lines are dropped before the two-option minimum is enforced.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, input CreateInput) (*models.Poll, error) {
	options := make([]string, 0, len(input.Options))
	for _, text := range input.Options {
		if t := strings.TrimSpace(text); t != "" {
			options = append(options, t)
		}
	}
	if len(options) < 2 {
		return nil, ErrTooFewOptions
	}

	poll := models.Poll{
		Title:          input.Title,
		Description:    input.Description,
		MultipleChoice: input.MultipleChoice,
		CheckIP:        input.CheckIP,
		IsPublic:       input.IsPublic,
		Anonymous:      input.Anonymous,
		CreatorID:      &creatorID,
		PublicLink:     uuid.NewString(),
		Deadline:       input.Deadline,
		ImagePath:      input.ImagePath,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&poll).Error; err != nil {
			return err
		}
		for _, text := range options {
			opt := models.Option{PollID: poll.ID, Text: text}
			if err := tx.Create(&opt).Error; err != nil {
				return err
			}
			poll.Options = append(poll.Options, opt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &poll, nil
}

// GetByLink loads a poll with its options by public link.
func (s *Service) GetByLink(ctx context.Context, publicLink string) (*models.Poll, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).
		Preload("Options").
		Where("public_link = ?", publicLink).
		First(&poll).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return &poll, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).Preload("Options").First(&poll, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return &poll, nil
}

// VoteInput is one vote submission. For single-choice polls only the
// first option id is considered; handlers build the slice accordingly.
type VoteInput struct {
	OptionIDs []uuid.UUID
	VoterIP   string
	// HasVotedCookie is whether the request carried the anti-revote
	// cookie for this poll.
	HasVotedCookie bool
}

// CastVote gates and records a vote submission. Preconditions are
// checked in a fixed order: poll exists, poll open, no prior-vote
// cookie, IP cap. Every submitted option must belong to the poll or
// the whole submission is rejected. All vote rows are inserted in one
// transaction sharing the voter IP and timestamp.
func (s *Service) CastVote(ctx context.Context, publicLink string, input VoteInput) error {
	poll, err := s.GetByLink(ctx, publicLink)
	if err != nil {
		return err
	}

	if PollState(poll, time.Now()) != StateOpen {
		return ErrPollClosed
	}

	if input.HasVotedCookie {
		return ErrAlreadyVoted
	}

	if poll.CheckIP {
		var ipVotes int64
		if err := s.db.WithContext(ctx).Model(&models.Vote{}).
			Where("poll_id = ? AND voter_ip = ?", poll.ID, input.VoterIP).
			Count(&ipVotes).Error; err != nil {
			return err
		}
		if ipVotes >= MaxVotesPerIP {
			return ErrVoteLimit
		}
	}

	selected := input.OptionIDs
	if !poll.MultipleChoice && len(selected) > 1 {
		selected = selected[:1]
	}
	if len(selected) == 0 {
		return ErrNoSelection
	}

	valid := make(map[uuid.UUID]bool, len(poll.Options))
	for _, opt := range poll.Options {
		valid[opt.ID] = true
	}
	for _, id := range selected {
		if !valid[id] {
			return ErrInvalidOption
		}
	}

	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, optionID := range selected {
			vote := models.Vote{
				PollID:   poll.ID,
				OptionID: optionID,
				VoterIP:  input.VoterIP,
				VotedAt:  now,
			}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// HasVoted reports whether the caller should be treated as having
// already voted on the poll: either the cookie is present, or the
// poll checks IPs and the cap is reached.
func (s *Service) HasVoted(ctx context.Context, poll *models.Poll, voterIP string, hasCookie bool) (bool, error) {
	if hasCookie {
		return true, nil
	}
	if !poll.CheckIP {
		return false, nil
	}

	var ipVotes int64
	if err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("poll_id = ? AND voter_ip = ?", poll.ID, voterIP).
		Count(&ipVotes).Error; err != nil {
		return false, err
	}
	return ipVotes >= MaxVotesPerIP, nil
}

// OptionResult is one tabulated option.
type OptionResult struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Votes   int64     `json:"votes"`
	Percent float64   `json:"percent"`
}

// ResultSet is the tabulation for one poll. TotalVotes counts vote
// rows, not voters: a multiple-choice voter who picked three options
// contributes three.
type ResultSet struct {
	Poll       *models.Poll   `json:"poll"`
	State      State          `json:"state"`
	TotalVotes int64          `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

// Results tabulates a poll. Viewable in every lifecycle state.
func (s *Service) Results(ctx context.Context, publicLink string) (*ResultSet, error) {
	poll, err := s.GetByLink(ctx, publicLink)
	if err != nil {
		return nil, err
	}
	return s.tabulate(ctx, poll)
}

func (s *Service) tabulate(ctx context.Context, poll *models.Poll) (*ResultSet, error) {
	type optionCount struct {
		OptionID uuid.UUID
		Count    int64
	}
	var counts []optionCount
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("option_id, count(*) as count").
		Where("poll_id = ?", poll.ID).
		Group("option_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	byOption := make(map[uuid.UUID]int64, len(counts))
	var total int64
	for _, c := range counts {
		byOption[c.OptionID] = c.Count
		total += c.Count
	}

	results := make([]OptionResult, len(poll.Options))
	for i, opt := range poll.Options {
		votes := byOption[opt.ID]
		results[i] = OptionResult{
			ID:      opt.ID,
			Text:    opt.Text,
			Votes:   votes,
			Percent: percent(votes, total),
		}
	}

	return &ResultSet{
		Poll:       poll,
		State:      PollState(poll, time.Now()),
		TotalVotes: total,
		Options:    results,
	}, nil
}

// percent rounds to one decimal place; zero total yields zero.
func percent(votes, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*1000) / 10
}

// ToggleArchive flips the archived flag. Owner or admin only.
func (s *Service) ToggleArchive(ctx context.Context, pollID uuid.UUID, actor Actor) (*models.Poll, error) {
	return s.toggleFlag(ctx, pollID, actor, "archived", func(p *models.Poll) bool { return !p.Archived })
}

// ToggleVisibility flips the public flag. Owner or admin only.
func (s *Service) ToggleVisibility(ctx context.Context, pollID uuid.UUID, actor Actor) (*models.Poll, error) {
	return s.toggleFlag(ctx, pollID, actor, "is_public", func(p *models.Poll) bool { return !p.IsPublic })
}

func (s *Service) toggleFlag(ctx context.Context, pollID uuid.UUID, actor Actor, column string, next func(*models.Poll) bool) (*models.Poll, error) {
	poll, err := s.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !actor.mayManage(poll) {
		return nil, ErrForbidden
	}

	value := next(poll)
	if err := s.db.WithContext(ctx).Model(poll).Update(column, value).Error; err != nil {
		return nil, err
	}
	return poll, nil
}

// UpdateDeadline sets or clears a poll's deadline. Owner or admin only.
func (s *Service) UpdateDeadline(ctx context.Context, pollID uuid.UUID, actor Actor, deadline *time.Time) (*models.Poll, error) {
	poll, err := s.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !actor.mayManage(poll) {
		return nil, ErrForbidden
	}

	if err := s.db.WithContext(ctx).Model(poll).Update("deadline", deadline).Error; err != nil {
		return nil, err
	}
	poll.Deadline = deadline
	return poll, nil
}

// Delete removes a poll with its options and votes, children first, in
// one transaction. Returns the poll's image path so the caller can
// clean up the uploaded file.
func (s *Service) Delete(ctx context.Context, pollID uuid.UUID, actor Actor) (string, error) {
	poll, err := s.GetByID(ctx, pollID)
	if err != nil {
		return "", err
	}
	if !actor.mayManage(poll) {
		return "", ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePollTx(tx, poll.ID)
	})
	if err != nil {
		return "", err
	}
	return poll.ImagePath, nil
}

// deletePollTx deletes one poll and its children inside an existing
// transaction. Shared with the account and admin cascade paths.
func deletePollTx(tx *gorm.DB, pollID uuid.UUID) error {
	if err := tx.Where("poll_id = ?", pollID).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	if err := tx.Where("poll_id = ?", pollID).Delete(&models.Option{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", pollID).Delete(&models.Poll{}).Error
}

// DeleteAllByCreator cascades every poll owned by a user. Used by the
// cascade variant of account deletion and by admin user deletion.
func DeleteAllByCreator(tx *gorm.DB, creatorID uuid.UUID) error {
	var ids []uuid.UUID
	if err := tx.Model(&models.Poll{}).Where("creator_id = ?", creatorID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := deletePollTx(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// PollSummary is a poll plus listing metadata.
type PollSummary struct {
	Poll      models.Poll `json:"poll"`
	VoteCount int64       `json:"vote_count"`
}

// RecentPublic lists the newest public, non-archived polls with their
// vote counts, for the home page.
func (s *Service) RecentPublic(ctx context.Context, limit int) ([]PollSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	var list []models.Poll
	err := s.db.WithContext(ctx).
		Where("is_public = ? AND archived = ?", true, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return s.withVoteCounts(ctx, list)
}

// ByCreator lists a user's polls, newest first, with vote counts.
func (s *Service) ByCreator(ctx context.Context, creatorID uuid.UUID) ([]PollSummary, error) {
	var list []models.Poll
	err := s.db.WithContext(ctx).
		Preload("Options").
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return s.withVoteCounts(ctx, list)
}

func (s *Service) withVoteCounts(ctx context.Context, list []models.Poll) ([]PollSummary, error) {
	summaries := make([]PollSummary, len(list))
	for i, p := range list {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Vote{}).
			Where("poll_id = ?", p.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		summaries[i] = PollSummary{Poll: p, VoteCount: count}
	}
	return summaries, nil
}
