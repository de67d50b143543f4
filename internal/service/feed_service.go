package service

import (
	"context"
	"errors"

	"quadra/internal/models"
	"quadra/internal/observability"
	"quadra/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const loadFeedMessage = "Não foi possível carregar os posts. Tente novamente mais tarde."

// FeedQuery selects a feed. A zero Viewer means anonymous; an empty Topic
// means every topic.
type FeedQuery struct {
	Viewer uuid.UUID
	Topic  models.Topic
	Sort   models.SortMode
}

type FeedService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	authors     AuthorLookup
}

func NewFeedService(postRepo repository.PostRepository, commentRepo repository.CommentRepository, authors AuthorLookup) *FeedService {
	return &FeedService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		authors:     authors,
	}
}

// Assemble fetches the posts for q and fills in like state, comment counts
// and authors. Only the base fetch can fail the call; each enrichment that
// fails falls back to its default for every item.
func (s *FeedService) Assemble(ctx context.Context, q FeedQuery) ([]*models.Post, error) {
	if q.Sort == "" {
		q.Sort = models.SortRecent
	}
	defer observability.TrackAssemble(string(q.Sort))()

	span, ctx := observability.StartSpan(ctx, "feed.assemble",
		attribute.String("feed.sort", string(q.Sort)),
		attribute.String("feed.topic", string(q.Topic)),
		attribute.Bool("feed.anonymous", q.Viewer == uuid.Nil),
	)
	defer span.End()

	posts, err := s.postRepo.List(ctx, q.Topic, q.Sort)
	if err != nil {
		span.SetError(err)
		return nil, models.NewRemoteFetchError(loadFeedMessage, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	span.AddAttributes(attribute.Int("feed.items", len(posts)))
	if len(posts) == 0 {
		return posts, nil
	}

	s.enrichPosts(ctx, q.Viewer, posts)
	return posts, nil
}

// GetPost loads one post with the same enrichment as a feed item.
func (s *FeedService) GetPost(ctx context.Context, postID, viewer uuid.UUID) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewRemoteFetchError(loadFeedMessage, err)
	}
	s.enrichPosts(ctx, viewer, []*models.Post{post})
	return post, nil
}

func (s *FeedService) enrichPosts(ctx context.Context, viewer uuid.UUID, posts []*models.Post) {
	ids := make([]uuid.UUID, len(posts))
	authorIDs := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authorIDs[i] = p.UserID
	}

	var (
		liked     []uuid.UUID
		counts    map[uuid.UUID]int
		authors   map[uuid.UUID]models.Author
		likedErr  error
		countErr  error
		authorErr error
	)

	// Goroutines record their own error so one failure never cancels the others.
	var g errgroup.Group
	if viewer != uuid.Nil {
		g.Go(func() error {
			liked, likedErr = s.postRepo.LikedPostIDs(ctx, viewer, ids)
			return nil
		})
	}
	g.Go(func() error {
		counts, countErr = s.postRepo.CommentCounts(ctx, ids)
		return nil
	})
	g.Go(func() error {
		authors, authorErr = s.authors.Authors(ctx, authorIDs)
		return nil
	})
	_ = g.Wait()

	if likedErr != nil {
		observability.LogDegraded(ctx, "liked", likedErr, len(posts))
		liked = nil
	}
	if countErr != nil {
		observability.LogDegraded(ctx, "comments", countErr, len(posts))
		counts = nil
	}
	if authorErr != nil {
		observability.LogDegraded(ctx, "author", authorErr, len(posts))
	}

	likedSet := make(map[uuid.UUID]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}

	for _, p := range posts {
		p.Comments = counts[p.ID]
		if viewer != uuid.Nil {
			_, ok := likedSet[p.ID]
			p.UserLiked = models.Bool(ok)
		} else {
			p.UserLiked = nil
		}
		if a, ok := authors[p.UserID]; ok {
			p.Author = a
		} else {
			p.Author = models.UnknownAuthor(p.UserID)
		}
	}
}

// ListComments returns the comments of a post oldest first with the
// viewer's like state and author snapshots.
func (s *FeedService) ListComments(ctx context.Context, postID, viewer uuid.UUID) ([]*models.Comment, error) {
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, models.NewRemoteFetchError("Não foi possível carregar os comentários.", err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	if len(comments) == 0 {
		return comments, nil
	}

	ids := make([]uuid.UUID, len(comments))
	authorIDs := make([]uuid.UUID, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		authorIDs[i] = c.UserID
	}

	var (
		liked     []uuid.UUID
		authors   map[uuid.UUID]models.Author
		likedErr  error
		authorErr error
	)
	var g errgroup.Group
	if viewer != uuid.Nil {
		g.Go(func() error {
			liked, likedErr = s.commentRepo.LikedCommentIDs(ctx, viewer, ids)
			return nil
		})
	}
	g.Go(func() error {
		authors, authorErr = s.authors.Authors(ctx, authorIDs)
		return nil
	})
	_ = g.Wait()

	if likedErr != nil {
		observability.LogDegraded(ctx, "comment_liked", likedErr, len(comments))
		liked = nil
	}
	if authorErr != nil {
		observability.LogDegraded(ctx, "comment_author", authorErr, len(comments))
	}

	likedSet := make(map[uuid.UUID]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	for _, c := range comments {
		if viewer != uuid.Nil {
			_, ok := likedSet[c.ID]
			c.UserLiked = models.Bool(ok)
		}
		if a, ok := authors[c.UserID]; ok {
			c.Author = a
		} else {
			c.Author = models.UnknownAuthor(c.UserID)
		}
	}
	return comments, nil
}
