package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Profile is a user's public profile row.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Username  string    `gorm:"not null;index" json:"username"`
	Gender    string    `json:"gender"`
	Positions []string  `gorm:"serializer:json" json:"positions"`
	Bio       string    `gorm:"type:text" json:"bio"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table to the hosted schema name.
func (Profile) TableName() string { return "profiles" }

// Author is a point-in-time snapshot of a profile embedded into posts and
// comments. It is never refreshed after the read that produced it.
type Author struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

// Snapshot builds the Author block for p.
func (p *Profile) Snapshot() Author {
	a := Author{ID: p.ID, Name: p.Name, Username: p.Username}
	if p.AvatarURL != nil {
		a.Avatar = *p.AvatarURL
	}
	return a
}

// UnknownAuthor is the placeholder used when a profile cannot be resolved.
func UnknownAuthor(id uuid.UUID) Author {
	return Author{ID: id, Name: "Usuário", Username: "usuario"}
}

// Genders accepted on a profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Positions lists the volleyball positions in display order.
var Positions = []string{
	"setter", "oppositeHitter", "passingOutsideHitter", "attackOutsideHitter", "middleBlocker", "libero",
}

// ValidGender reports whether g is an accepted gender value.
func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}

// ValidPosition reports whether p is a known volleyball position.
func ValidPosition(p string) bool {
	return slices.Contains(Positions, p)
}
