package models

import (
	"time"

	"github.com/google/uuid"
)

// ReplyTarget names the comment being answered. It is kept for display only
// and is not a thread pointer.
type ReplyTarget struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Author    Author       `gorm:"-" json:"author"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	ReplyTo   *ReplyTarget `gorm:"serializer:json" json:"reply_to,omitempty"`
	Likes     int          `gorm:"not null;default:0" json:"likes"`
	UserLiked *bool        `gorm:"-" json:"user_liked,omitempty"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

// IsLiked reports the viewer-liked flag, treating "unknown" as false.
func (c *Comment) IsLiked() bool {
	return c.UserLiked != nil && *c.UserLiked
}

// CommentLike records that a viewer liked a comment.
type CommentLike struct {
	CommentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"comment_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (CommentLike) TableName() string { return "comment_likes" }
