package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quadra/internal/models"
	"quadra/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssembler struct {
	mu         sync.Mutex
	calls      int
	assembleFn func(context.Context, service.FeedQuery) ([]*models.Post, error)
	commentsFn func(context.Context, uuid.UUID, uuid.UUID) ([]*models.Comment, error)
}

func (f *fakeAssembler) Assemble(ctx context.Context, q service.FeedQuery) ([]*models.Post, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.assembleFn(ctx, q)
}

func (f *fakeAssembler) ListComments(ctx context.Context, postID, viewer uuid.UUID) ([]*models.Comment, error) {
	return f.commentsFn(ctx, postID, viewer)
}

func (f *fakeAssembler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEngager struct {
	err error
}

func (f *fakeEngager) TogglePostLike(_ context.Context, _, _ uuid.UUID, cur service.LikeState) (service.LikeState, error) {
	if f.err != nil {
		return cur, f.err
	}
	if cur.Liked {
		return service.LikeState{Liked: false, Likes: cur.Likes - 1}, nil
	}
	return service.LikeState{Liked: true, Likes: cur.Likes + 1}, nil
}

func (f *fakeEngager) ToggleCommentLike(ctx context.Context, v, id uuid.UUID, cur service.LikeState) (service.LikeState, error) {
	return f.TogglePostLike(ctx, v, id, cur)
}

type fakeMutator struct {
	err    error
	events []models.FeedEvent
}

func (f *fakeMutator) CreatePost(ctx context.Context, viewer uuid.UUID, in service.CreatePostInput) (*models.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, err := service.ValidatePost(in)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	p.UserID = viewer
	p.UserLiked = models.Bool(false)
	f.events = append(f.events, models.FeedEvent{
		Type: models.EventPostCreated, Origin: service.OriginFrom(ctx), PostID: p.ID, ActorID: viewer, Post: p.Clone(),
	})
	return p, nil
}

func (f *fakeMutator) CreateComment(ctx context.Context, viewer uuid.UUID, in service.CreateCommentInput) (*models.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &models.Comment{ID: uuid.New(), PostID: in.PostID, UserID: viewer, Content: in.Content}
	cp := *c
	f.events = append(f.events, models.FeedEvent{
		Type: models.EventCommentCreated, Origin: service.OriginFrom(ctx), PostID: c.PostID, ActorID: viewer, Comment: &cp,
	})
	return c, nil
}

func staticAssembler(posts []*models.Post) *fakeAssembler {
	return &fakeAssembler{
		assembleFn: func(_ context.Context, _ service.FeedQuery) ([]*models.Post, error) {
			out := make([]*models.Post, len(posts))
			for i, p := range posts {
				out[i] = p.Clone()
			}
			return out, nil
		},
		commentsFn: func(_ context.Context, postID, _ uuid.UUID) ([]*models.Comment, error) {
			return []*models.Comment{{ID: uuid.New(), PostID: postID, Content: "primeiro"}}, nil
		},
	}
}

func newTestSession(t *testing.T, a *fakeAssembler, viewer uuid.UUID) *Session {
	t.Helper()
	s := NewSession(a, &fakeEngager{}, &fakeMutator{}, "https://quadra.app", viewer)
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func TestSession_StaleResponseDiscarded(t *testing.T) {
	old := []*models.Post{{ID: uuid.New(), Title: "old"}}
	fresh := []*models.Post{{ID: uuid.New(), Title: "fresh", Topic: models.TopicDicas}}

	release := make(chan struct{})
	started := make(chan struct{})
	a := &fakeAssembler{assembleFn: func(_ context.Context, q service.FeedQuery) ([]*models.Post, error) {
		if q.Topic == "" {
			close(started)
			<-release
			return old, nil
		}
		return fresh, nil
	}}
	s := NewSession(a, &fakeEngager{}, &fakeMutator{}, "", uuid.Nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Refresh(context.Background()) }()
	<-started

	require.NoError(t, s.SetFilter(context.Background(), models.TopicDicas))
	close(release)
	assert.ErrorIs(t, <-errCh, ErrStale)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "fresh", snap.Items[0].Title)
	assert.Equal(t, uint64(2), snap.Token)
	assert.False(t, snap.Loading)
}

func TestSession_DensityAndSearchNeverRefetch(t *testing.T) {
	posts := samplePosts()
	a := staticAssembler(posts)
	s := newTestSession(t, a, uuid.New())

	s.SetDensity(DensityCompact)
	s.SetSearch("saque")
	snap := s.Snapshot()
	assert.Equal(t, 1, a.callCount())
	require.Len(t, snap.Items, 1)
	assert.Equal(t, DensityCompact, snap.Items[0].Density)
	assert.Equal(t, 3, snap.Total)

	s.SetSearch("")
	snap = s.Snapshot()
	assert.Len(t, snap.Items, 3)
	for i, p := range posts {
		assert.Equal(t, p.ID, snap.Items[i].ID)
	}

	require.NoError(t, s.SetSort(context.Background(), models.SortPopular))
	require.NoError(t, s.SetViewer(context.Background(), uuid.New()))
	assert.Equal(t, 3, a.callCount())
}

func TestSession_FetchErrorIsVisible(t *testing.T) {
	a := &fakeAssembler{assembleFn: func(_ context.Context, _ service.FeedQuery) ([]*models.Post, error) {
		return nil, models.NewRemoteFetchError("Não foi possível carregar os posts.", errors.New("down"))
	}}
	s := NewSession(a, &fakeEngager{}, &fakeMutator{}, "", uuid.Nil)

	err := s.Refresh(context.Background())
	assert.Equal(t, models.CodeRemoteFetch, models.ErrorCode(err))
	snap := s.Snapshot()
	assert.Equal(t, "Não foi possível carregar os posts.", snap.Error)
	assert.Empty(t, snap.Items)
}

func TestSession_ToggleLike(t *testing.T) {
	posts := samplePosts()
	posts[1].Likes = 5
	posts[1].UserLiked = models.Bool(false)
	s := newTestSession(t, staticAssembler(posts), uuid.New())
	ctx := context.Background()

	require.NoError(t, s.ToggleLike(ctx, posts[1].ID))
	item := s.Snapshot().Items[1]
	assert.Equal(t, 6, item.Likes)
	assert.True(t, item.Liked)

	require.NoError(t, s.ToggleLike(ctx, posts[1].ID))
	item = s.Snapshot().Items[1]
	assert.Equal(t, 5, item.Likes)
	assert.False(t, item.Liked)

	s.engager = &fakeEngager{err: models.NewRemoteMutationError("falhou", errors.New("x"))}
	assert.Error(t, s.ToggleLike(ctx, posts[1].ID))
	item = s.Snapshot().Items[1]
	assert.Equal(t, 5, item.Likes)
	assert.False(t, item.Liked)
}

func TestSession_ToggleLikeAnonymous(t *testing.T) {
	posts := samplePosts()
	s := newTestSession(t, staticAssembler(posts), uuid.Nil)
	s.engager = &fakeEngager{err: errors.New("must not be called")}

	require.NoError(t, s.ToggleLike(context.Background(), posts[0].ID))
	assert.Equal(t, 3, s.Snapshot().Items[0].Likes)
}

func TestSession_CreatePostPrepends(t *testing.T) {
	posts := samplePosts()
	s := newTestSession(t, staticAssembler(posts), uuid.New())
	require.NoError(t, s.SetSort(context.Background(), models.SortPopular))

	p, err := s.CreatePost(context.Background(), service.CreatePostInput{Title: "Novo", Content: "texto"})
	require.NoError(t, err)
	snap := s.Snapshot()
	require.Len(t, snap.Items, 4)
	assert.Equal(t, p.ID, snap.Items[0].ID)

	_, err = s.CreatePost(context.Background(), service.CreatePostInput{Title: "", Content: "texto"})
	assert.True(t, models.IsValidation(err))
	assert.Len(t, s.Snapshot().Items, 4)
}

func TestSession_CreateCommentAppendsAndCounts(t *testing.T) {
	posts := samplePosts()
	s := newTestSession(t, staticAssembler(posts), uuid.New())
	ctx := context.Background()

	views, err := s.OpenPost(ctx, posts[0].ID)
	require.NoError(t, err)
	require.Len(t, views, 1)

	c, err := s.CreateComment(ctx, service.CreateCommentInput{PostID: posts[0].ID, Content: "segundo"})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Items[0].Comments)
	require.Len(t, snap.Comments, 2)
	assert.Equal(t, c.ID, snap.Comments[1].ID)

	s.mutator = &fakeMutator{err: errors.New("down")}
	_, err = s.CreateComment(ctx, service.CreateCommentInput{PostID: posts[0].ID, Content: "terceiro"})
	assert.Error(t, err)
	snap = s.Snapshot()
	assert.Equal(t, 2, snap.Items[0].Comments)
	assert.Len(t, snap.Comments, 2)

	require.NoError(t, s.ToggleCommentLike(ctx, posts[0].ID, c.ID))
	assert.True(t, s.Snapshot().Comments[1].Liked)

	s.ClosePost()
	assert.Nil(t, s.Snapshot().OpenPost)
}

func TestSession_ApplyEvent(t *testing.T) {
	posts := samplePosts()
	viewer := uuid.New()
	other := uuid.New()
	s := newTestSession(t, staticAssembler(posts), viewer)

	likes := 42
	assert.True(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostLiked, PostID: posts[2].ID, ActorID: other, Likes: &likes}))
	assert.Equal(t, 42, s.Snapshot().Items[2].Likes)

	// written through this session, already merged
	assert.False(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostLiked, Origin: s.ID(), PostID: posts[2].ID, ActorID: viewer, Likes: &likes}))

	// same viewer through the HTTP API
	liked := true
	more := 43
	assert.True(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostLiked, PostID: posts[2].ID, ActorID: viewer, Likes: &more, Liked: &liked}))
	assert.Equal(t, 43, s.Snapshot().Items[2].Likes)
	assert.True(t, s.Snapshot().Items[2].Liked)

	// another viewer's like never sets this viewer's flag
	assert.True(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostLiked, PostID: posts[1].ID, ActorID: other, Likes: &more, Liked: &liked}))
	assert.False(t, s.Snapshot().Items[1].Liked)

	newPost := &models.Post{ID: uuid.New(), Title: "de outro", Topic: models.TopicPosicao}
	assert.True(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostCreated, PostID: newPost.ID, ActorID: other, Post: newPost}))
	snap := s.Snapshot()
	assert.Equal(t, newPost.ID, snap.Items[0].ID)
	assert.False(t, snap.Items[0].Liked)

	require.NoError(t, s.SetFilter(context.Background(), models.TopicDicas))
	offTopic := &models.Post{ID: uuid.New(), Topic: models.TopicFandom}
	assert.False(t, s.ApplyEvent(models.FeedEvent{Type: models.EventPostCreated, ActorID: other, Post: offTopic}))

	comment := &models.Comment{ID: uuid.New(), PostID: posts[0].ID}
	assert.True(t, s.ApplyEvent(models.FeedEvent{Type: models.EventCommentCreated, PostID: posts[0].ID, ActorID: other, Comment: comment}))
	assert.Equal(t, 2, s.Snapshot().Items[0].Comments)
}

func TestSession_RefetchKeepsOpenPostComments(t *testing.T) {
	posts := samplePosts()
	s := newTestSession(t, staticAssembler(posts), uuid.New())
	ctx := context.Background()

	_, err := s.OpenPost(ctx, posts[0].ID)
	require.NoError(t, err)
	require.Len(t, s.Snapshot().Comments, 1)

	require.NoError(t, s.SetSort(ctx, models.SortPopular))
	snap := s.Snapshot()
	require.NotNil(t, snap.OpenPost)
	assert.Len(t, snap.Comments, 1)

	c, err := s.CreateComment(ctx, service.CreateCommentInput{PostID: posts[0].ID, Content: "depois do filtro"})
	require.NoError(t, err)
	snap = s.Snapshot()
	require.Len(t, snap.Comments, 2)
	assert.Equal(t, c.ID, snap.Comments[1].ID)
	assert.Equal(t, 2, snap.Items[0].Comments)

	// closed posts do not survive a refetch
	s.ClosePost()
	require.NoError(t, s.Refresh(ctx))
	_, loaded := s.comments[posts[0].ID]
	assert.False(t, loaded)
}

func TestSession_SkipsOnlyItsOwnEvents(t *testing.T) {
	posts := samplePosts()
	viewer := uuid.New()
	mut := &fakeMutator{}
	s := NewSession(staticAssembler(posts), &fakeEngager{}, mut, "", viewer)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	_, err := s.OpenPost(ctx, posts[0].ID)
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, service.CreateCommentInput{PostID: posts[0].ID, Content: "daqui"})
	require.NoError(t, err)
	require.Len(t, mut.events, 1)
	assert.Equal(t, s.ID(), mut.events[0].Origin)
	assert.False(t, s.ApplyEvent(mut.events[0]))
	assert.Equal(t, 2, s.Snapshot().Items[0].Comments)

	// the same viewer posting from another tab
	other := NewSession(staticAssembler(posts), &fakeEngager{}, mut, "", viewer)
	require.NoError(t, other.Refresh(ctx))
	p, err := other.CreatePost(ctx, service.CreatePostInput{Title: "De outra aba", Content: "oi"})
	require.NoError(t, err)
	require.Len(t, mut.events, 2)

	assert.True(t, s.ApplyEvent(mut.events[1]))
	snap := s.Snapshot()
	assert.Equal(t, p.ID, snap.Items[0].ID)
	assert.Len(t, snap.Items, 4)
	assert.False(t, s.ApplyEvent(mut.events[1]))
}

func TestSession_ShareURL(t *testing.T) {
	s := NewSession(&fakeAssembler{}, &fakeEngager{}, &fakeMutator{}, "https://quadra.app/", uuid.Nil)
	id := uuid.New()
	assert.Equal(t, "https://quadra.app/community/post/"+id.String(), s.ShareURL(id))
}
