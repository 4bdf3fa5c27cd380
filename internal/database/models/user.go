package models

type User struct {
	Base
	FirstName    string `gorm:"size:100;not null" json:"first_name"`
	LastName     string `gorm:"size:100;not null" json:"last_name"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`
	IsAdmin    bool `gorm:"default:false" json:"is_admin"`
	IsBlocked  bool `gorm:"default:false" json:"is_blocked"`

	AvatarPath string `gorm:"size:255" json:"avatar_path,omitempty"`

	// Two-phase email change: the new address lives here until the
	// confirmation token is redeemed.
	PendingEmail     string `gorm:"size:255" json:"-"`
	EmailChangeToken string `gorm:"size:36;index" json:"-"`

	// Relationships
	Polls []Poll `gorm:"foreignKey:CreatorID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
