package models

import "github.com/google/uuid"

// Feed event types published to live feed subscribers.
const (
	EventPostCreated    = "post_created"
	EventPostLiked      = "post_liked"
	EventCommentCreated = "comment_created"
	EventCommentLiked   = "comment_liked"
)

// FeedEvent is a change to shared feed data. Liked is the actor's own like
// state and only applies to subscribers viewing as the actor. Origin names
// the live session whose write produced the event, if any.
type FeedEvent struct {
	Type      string     `json:"type"`
	Origin    string     `json:"origin,omitempty"`
	PostID    uuid.UUID  `json:"post_id"`
	CommentID *uuid.UUID `json:"comment_id,omitempty"`
	ActorID   uuid.UUID  `json:"actor_id"`
	Likes     *int       `json:"likes,omitempty"`
	Liked     *bool      `json:"liked,omitempty"`
	Post      *Post      `json:"post,omitempty"`
	Comment   *Comment   `json:"comment,omitempty"`
}
