package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote rows are written once by the voting engine and never mutated.
// Each selected option in a multiple-choice submission is its own row.
type Vote struct {
	Base
	PollID   uuid.UUID `gorm:"type:uuid;index;not null" json:"poll_id"`
	OptionID uuid.UUID `gorm:"type:uuid;index;not null" json:"option_id"`
	VoterIP  string    `gorm:"size:45;not null" json:"-"`
	VotedAt  time.Time `gorm:"not null" json:"voted_at"`
}

func (Vote) TableName() string {
	return "votes"
}
