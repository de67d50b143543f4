package service

import (
	"context"
	"errors"
	"log/slog"

	"quadra/internal/models"
	"quadra/internal/observability"
	"quadra/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentKind distinguishes what a like targets.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

const toggleLikeMessage = "Não foi possível registrar a curtida. Tente novamente."

// LikeState is a viewer's view of one item's likes.
type LikeState struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// EventPublisher receives feed changes for live subscribers.
type EventPublisher interface {
	PublishFeedEvent(ctx context.Context, event models.FeedEvent) error
}

type originKey struct{}

// WithOrigin marks writes made under ctx as coming from the live session
// origin. Their events carry it so that session can skip them.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin set by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

type EngagementService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	publisher   EventPublisher
	locks       *keyedMutex
}

func NewEngagementService(postRepo repository.PostRepository, commentRepo repository.CommentRepository, publisher EventPublisher) *EngagementService {
	return &EngagementService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		publisher:   publisher,
		locks:       newKeyedMutex(),
	}
}

// likeTarget is the part of a repository a toggle needs.
type likeTarget interface {
	IsLiked(ctx context.Context, viewerID, id uuid.UUID) (bool, error)
	Like(ctx context.Context, viewerID, id uuid.UUID) (int, error)
	Unlike(ctx context.Context, viewerID, id uuid.UUID) (int, error)
}

// TogglePostLike flips the viewer's like on a post. current is the state the
// caller holds; it is returned unchanged for an anonymous viewer or on error.
func (s *EngagementService) TogglePostLike(ctx context.Context, viewer, postID uuid.UUID, current LikeState) (LikeState, error) {
	return s.toggle(ctx, KindPost, s.postRepo, viewer, postID, current)
}

// ToggleCommentLike flips the viewer's like on a comment.
func (s *EngagementService) ToggleCommentLike(ctx context.Context, viewer, commentID uuid.UUID, current LikeState) (LikeState, error) {
	return s.toggle(ctx, KindComment, s.commentRepo, viewer, commentID, current)
}

func (s *EngagementService) toggle(ctx context.Context, kind ContentKind, target likeTarget, viewer, id uuid.UUID, current LikeState) (LikeState, error) {
	if viewer == uuid.Nil {
		observability.LikeToggles.WithLabelValues(string(kind), "ignored").Inc()
		return current, nil
	}

	unlock := s.locks.Lock(string(kind) + ":" + id.String() + ":" + viewer.String())
	defer unlock()

	// The stored relation wins over whatever the caller last saw.
	liked, err := target.IsLiked(ctx, viewer, id)
	if err != nil {
		return current, s.toggleFailed(ctx, kind, id, err)
	}

	var likes int
	if liked {
		likes, err = target.Unlike(ctx, viewer, id)
	} else {
		likes, err = target.Like(ctx, viewer, id)
	}
	if err != nil {
		return current, s.toggleFailed(ctx, kind, id, err)
	}
	if likes < 0 {
		likes = 0
	}

	next := LikeState{Liked: !liked, Likes: likes}
	observability.LikeToggles.WithLabelValues(string(kind), "ok").Inc()
	s.publishLike(ctx, kind, viewer, id, next)
	return next, nil
}

func (s *EngagementService) toggleFailed(ctx context.Context, kind ContentKind, id uuid.UUID, err error) error {
	observability.LikeToggles.WithLabelValues(string(kind), "error").Inc()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if kind == KindComment {
			return models.NewNotFoundError("Comment", id)
		}
		return models.NewNotFoundError("Post", id)
	}
	observability.Logger.ErrorContext(ctx, "like toggle failed",
		slog.String("kind", string(kind)),
		slog.String("id", id.String()),
		slog.String("error", err.Error()),
	)
	return models.NewRemoteMutationError(toggleLikeMessage, err)
}

func (s *EngagementService) publishLike(ctx context.Context, kind ContentKind, viewer, id uuid.UUID, state LikeState) {
	if s.publisher == nil {
		return
	}
	ev := models.FeedEvent{ActorID: viewer, Likes: &state.Likes, Liked: &state.Liked}
	if kind == KindComment {
		ev.Type = models.EventCommentLiked
		ev.CommentID = &id
		if c, err := s.commentRepo.GetByID(ctx, id); err == nil {
			ev.PostID = c.PostID
		}
	} else {
		ev.Type = models.EventPostLiked
		ev.PostID = id
	}
	publish(ctx, s.publisher, ev)
}

func publish(ctx context.Context, p EventPublisher, ev models.FeedEvent) {
	if p == nil {
		return
	}
	ev.Origin = OriginFrom(ctx)
	if err := p.PublishFeedEvent(ctx, ev); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish feed event",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
