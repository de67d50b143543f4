package service

import (
	"context"
	"errors"
	"testing"

	"quadra/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listFn          func(context.Context, models.Topic, models.SortMode) ([]*models.Post, error)
	getByIDFn       func(context.Context, uuid.UUID) (*models.Post, error)
	createFn        func(context.Context, *models.Post) error
	likedPostIDsFn  func(context.Context, uuid.UUID, []uuid.UUID) ([]uuid.UUID, error)
	commentCountsFn func(context.Context, []uuid.UUID) (map[uuid.UUID]int, error)
	isLikedFn       func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	likeFn          func(context.Context, uuid.UUID, uuid.UUID) (int, error)
	unlikeFn        func(context.Context, uuid.UUID, uuid.UUID) (int, error)
}

func (s *postRepoStub) List(ctx context.Context, topic models.Topic, sort models.SortMode) ([]*models.Post, error) {
	return s.listFn(ctx, topic, sort)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) LikedPostIDs(ctx context.Context, viewer uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return s.likedPostIDsFn(ctx, viewer, ids)
}
func (s *postRepoStub) CommentCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	return s.commentCountsFn(ctx, ids)
}
func (s *postRepoStub) IsLiked(ctx context.Context, viewer, id uuid.UUID) (bool, error) {
	return s.isLikedFn(ctx, viewer, id)
}
func (s *postRepoStub) Like(ctx context.Context, viewer, id uuid.UUID) (int, error) {
	return s.likeFn(ctx, viewer, id)
}
func (s *postRepoStub) Unlike(ctx context.Context, viewer, id uuid.UUID) (int, error) {
	return s.unlikeFn(ctx, viewer, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listFn:          func(_ context.Context, _ models.Topic, _ models.SortMode) ([]*models.Post, error) { return nil, nil },
		getByIDFn:       func(_ context.Context, id uuid.UUID) (*models.Post, error) { return &models.Post{ID: id}, nil },
		createFn:        func(_ context.Context, p *models.Post) error { p.ID = uuid.New(); return nil },
		likedPostIDsFn:  func(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]uuid.UUID, error) { return nil, nil },
		commentCountsFn: func(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]int, error) { return map[uuid.UUID]int{}, nil },
		isLikedFn:       func(_ context.Context, _, _ uuid.UUID) (bool, error) { return false, nil },
		likeFn:          func(_ context.Context, _, _ uuid.UUID) (int, error) { return 1, nil },
		unlikeFn:        func(_ context.Context, _, _ uuid.UUID) (int, error) { return 0, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	listByPostFn      func(context.Context, uuid.UUID) ([]*models.Comment, error)
	getByIDFn         func(context.Context, uuid.UUID) (*models.Comment, error)
	createFn          func(context.Context, *models.Comment) error
	likedCommentIDsFn func(context.Context, uuid.UUID, []uuid.UUID) ([]uuid.UUID, error)
	isLikedFn         func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	likeFn            func(context.Context, uuid.UUID, uuid.UUID) (int, error)
	unlikeFn          func(context.Context, uuid.UUID, uuid.UUID) (int, error)
}

func (s *commentRepoStub) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) LikedCommentIDs(ctx context.Context, viewer uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return s.likedCommentIDsFn(ctx, viewer, ids)
}
func (s *commentRepoStub) IsLiked(ctx context.Context, viewer, id uuid.UUID) (bool, error) {
	return s.isLikedFn(ctx, viewer, id)
}
func (s *commentRepoStub) Like(ctx context.Context, viewer, id uuid.UUID) (int, error) {
	return s.likeFn(ctx, viewer, id)
}
func (s *commentRepoStub) Unlike(ctx context.Context, viewer, id uuid.UUID) (int, error) {
	return s.unlikeFn(ctx, viewer, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		listByPostFn:      func(_ context.Context, _ uuid.UUID) ([]*models.Comment, error) { return nil, nil },
		getByIDFn:         func(_ context.Context, id uuid.UUID) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		createFn:          func(_ context.Context, c *models.Comment) error { c.ID = uuid.New(); return nil },
		likedCommentIDsFn: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]uuid.UUID, error) { return nil, nil },
		isLikedFn:         func(_ context.Context, _, _ uuid.UUID) (bool, error) { return false, nil },
		likeFn:            func(_ context.Context, _, _ uuid.UUID) (int, error) { return 1, nil },
		unlikeFn:          func(_ context.Context, _, _ uuid.UUID) (int, error) { return 0, nil },
	}
}

// authorStub is a stub for AuthorLookup.
type authorStub struct {
	authors map[uuid.UUID]models.Author
	err     error
}

func (a *authorStub) Author(_ context.Context, id uuid.UUID) (models.Author, error) {
	if a.err != nil {
		return models.UnknownAuthor(id), a.err
	}
	if au, ok := a.authors[id]; ok {
		return au, nil
	}
	return models.UnknownAuthor(id), errors.New("not found")
}

func (a *authorStub) Authors(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Author, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := map[uuid.UUID]models.Author{}
	for _, id := range ids {
		if au, ok := a.authors[id]; ok {
			out[id] = au
		}
	}
	return out, nil
}

// publisherStub records published events.
type publisherStub struct {
	events []models.FeedEvent
	err    error
}

func (p *publisherStub) PublishFeedEvent(_ context.Context, ev models.FeedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
