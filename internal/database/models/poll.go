package models

import (
	"time"

	"github.com/google/uuid"
)

type Poll struct {
	Base
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	MultipleChoice bool `gorm:"default:false" json:"multiple_choice"`
	CheckIP        bool `gorm:"default:true" json:"check_ip"`
	IsPublic       bool `gorm:"default:true" json:"is_public"`
	Anonymous      bool `gorm:"default:false" json:"anonymous"`
	Archived       bool `gorm:"default:false" json:"archived"`

	// CreatorID is nullable: polls survive their owner's deletion as
	// orphans unless the owner opted into a cascade.
	CreatorID *uuid.UUID `gorm:"type:uuid;index" json:"creator_id,omitempty"`

	// PublicLink is the opaque identifier used in the voting URL.
	PublicLink string `gorm:"size:36;uniqueIndex;not null" json:"public_link"`

	Deadline  *time.Time `json:"deadline,omitempty"`
	ImagePath string     `gorm:"size:255" json:"image_path,omitempty"`

	// Relationships
	Creator *User    `gorm:"foreignKey:CreatorID" json:"-"`
	Options []Option `gorm:"foreignKey:PollID" json:"options,omitempty"`
	Votes   []Vote   `gorm:"foreignKey:PollID" json:"-"`
}

func (Poll) TableName() string {
	return "polls"
}

type Option struct {
	Base
	PollID uuid.UUID `gorm:"type:uuid;index;not null" json:"poll_id"`
	Text   string    `gorm:"size:500;not null" json:"text"`
}

func (Option) TableName() string {
	return "options"
}
