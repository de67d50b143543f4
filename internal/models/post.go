package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is a community feed post. Comments and UserLiked are derived on
// every read; Author is a snapshot taken at read time.
type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Author    Author    `gorm:"-" json:"author"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Topic     Topic     `gorm:"not null;index" json:"topic"`
	MediaURLs []string  `gorm:"serializer:json" json:"media_urls"`
	Links     []string  `gorm:"serializer:json" json:"links"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Comments  int       `gorm:"-" json:"comments"`
	// UserLiked is nil when the feed was assembled without a viewer.
	UserLiked *bool     `gorm:"-" json:"user_liked,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table to the hosted schema name.
func (Post) TableName() string { return "posts" }

// IsLiked reports the viewer-liked flag, treating "unknown" as false.
func (p *Post) IsLiked() bool {
	return p.UserLiked != nil && *p.UserLiked
}

// Clone returns a copy of p that shares no slices with it.
func (p *Post) Clone() *Post {
	cp := *p
	cp.MediaURLs = append([]string(nil), p.MediaURLs...)
	cp.Links = append([]string(nil), p.Links...)
	if p.UserLiked != nil {
		v := *p.UserLiked
		cp.UserLiked = &v
	}
	return &cp
}

// PostLike records that a viewer liked a post.
type PostLike struct {
	PostID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string { return "post_likes" }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
