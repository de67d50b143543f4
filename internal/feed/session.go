package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"quadra/internal/models"
	"quadra/internal/observability"
	"quadra/internal/service"

	"github.com/google/uuid"
)

// ErrStale is returned by a fetch whose response was superseded by a newer
// request. The result was dropped.
var ErrStale = errors.New("feed: stale response discarded")

// Assembler loads feeds and comment lists.
type Assembler interface {
	Assemble(ctx context.Context, q service.FeedQuery) ([]*models.Post, error)
	ListComments(ctx context.Context, postID, viewer uuid.UUID) ([]*models.Comment, error)
}

// Engager toggles likes.
type Engager interface {
	TogglePostLike(ctx context.Context, viewer, postID uuid.UUID, current service.LikeState) (service.LikeState, error)
	ToggleCommentLike(ctx context.Context, viewer, commentID uuid.UUID, current service.LikeState) (service.LikeState, error)
}

// Mutator creates posts and comments.
type Mutator interface {
	CreatePost(ctx context.Context, viewer uuid.UUID, in service.CreatePostInput) (*models.Post, error)
	CreateComment(ctx context.Context, viewer uuid.UUID, in service.CreateCommentInput) (*models.Comment, error)
}

// Snapshot is the rendered state of a session.
type Snapshot struct {
	Token    uint64          `json:"token"`
	Viewer   uuid.UUID       `json:"viewer_id"`
	Topic    models.Topic    `json:"topic,omitempty"`
	Sort     models.SortMode `json:"sort"`
	Density  Density         `json:"density"`
	Search   string          `json:"search,omitempty"`
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`
	Total    int             `json:"total"`
	Items    []ItemView      `json:"items"`
	OpenPost *uuid.UUID      `json:"open_post,omitempty"`
	Comments []CommentView   `json:"comments,omitempty"`
}

// Session is one viewer's live view of the feed. Items are only replaced by
// the response to the latest fetch; likes and new content are merged into
// them after the remote write succeeds.
type Session struct {
	id        string
	assembler Assembler
	engager   Engager
	mutator   Mutator
	baseURL   string
	now       func() time.Time

	mu       sync.Mutex
	viewer   uuid.UUID
	topic    models.Topic
	sort     models.SortMode
	density  Density
	search   string
	token    uint64
	loading  bool
	errMsg   string
	items    []*models.Post
	comments map[uuid.UUID][]*models.Comment
	openPost *uuid.UUID
}

// NewSession creates an empty session. Call Refresh to load it.
func NewSession(assembler Assembler, engager Engager, mutator Mutator, baseURL string, viewer uuid.UUID) *Session {
	return &Session{
		id:        uuid.NewString(),
		assembler: assembler,
		engager:   engager,
		mutator:   mutator,
		baseURL:   baseURL,
		now:       time.Now,
		viewer:    viewer,
		sort:      models.SortRecent,
		density:   DensityCard,
		comments:  make(map[uuid.UUID][]*models.Comment),
	}
}

// Refresh fetches the feed for the current filter, sort and viewer.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.token++
	token := s.token
	q := service.FeedQuery{Viewer: s.viewer, Topic: s.topic, Sort: s.sort}
	s.loading = true
	s.mu.Unlock()

	items, err := s.assembler.Assemble(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		observability.StaleResponsesDiscarded.Inc()
		return ErrStale
	}
	s.loading = false
	if err != nil {
		s.errMsg = userMessage(err)
		s.items = nil
		return err
	}
	s.errMsg = ""
	s.items = items
	kept := make(map[uuid.UUID][]*models.Comment)
	if s.openPost != nil {
		if list, ok := s.comments[*s.openPost]; ok {
			kept[*s.openPost] = list
		}
	}
	s.comments = kept
	return nil
}

// SetFilter changes the topic filter and refetches. An empty topic shows all.
func (s *Session) SetFilter(ctx context.Context, topic models.Topic) error {
	s.mu.Lock()
	s.topic = topic
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetSort changes the sort mode and refetches.
func (s *Session) SetSort(ctx context.Context, sort models.SortMode) error {
	s.mu.Lock()
	s.sort = sort
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetViewer changes the viewer identity and refetches.
func (s *Session) SetViewer(ctx context.Context, viewer uuid.UUID) error {
	s.mu.Lock()
	s.viewer = viewer
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetDensity switches the rendering. It never refetches.
func (s *Session) SetDensity(d Density) {
	s.mu.Lock()
	s.density = d
	s.mu.Unlock()
}

// SetSearch narrows the loaded items. It never refetches.
func (s *Session) SetSearch(query string) {
	s.mu.Lock()
	s.search = query
	s.mu.Unlock()
}

// ID identifies the session as the origin of the events its writes publish.
func (s *Session) ID() string { return s.id }

func (s *Session) origin(ctx context.Context) context.Context {
	return service.WithOrigin(ctx, s.id)
}

// Viewer returns the current viewer id.
func (s *Session) Viewer() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

// ToggleLike flips the viewer's like on a loaded post. Anonymous viewers and
// unknown posts are ignored. On failure the item is left untouched.
func (s *Session) ToggleLike(ctx context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	viewer := s.viewer
	p := findPost(s.items, postID)
	if p == nil || viewer == uuid.Nil {
		s.mu.Unlock()
		return nil
	}
	current := service.LikeState{Liked: p.IsLiked(), Likes: p.Likes}
	s.mu.Unlock()

	next, err := s.engager.TogglePostLike(s.origin(ctx), viewer, postID, current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := findPost(s.items, postID); p != nil {
		p.Likes = next.Likes
		p.UserLiked = models.Bool(next.Liked)
	}
	return nil
}

// ToggleCommentLike flips the viewer's like on a loaded comment.
func (s *Session) ToggleCommentLike(ctx context.Context, postID, commentID uuid.UUID) error {
	s.mu.Lock()
	viewer := s.viewer
	c := findComment(s.comments[postID], commentID)
	if c == nil || viewer == uuid.Nil {
		s.mu.Unlock()
		return nil
	}
	current := service.LikeState{Liked: c.IsLiked(), Likes: c.Likes}
	s.mu.Unlock()

	next, err := s.engager.ToggleCommentLike(s.origin(ctx), viewer, commentID, current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c := findComment(s.comments[postID], commentID); c != nil {
		c.Likes = next.Likes
		c.UserLiked = models.Bool(next.Liked)
	}
	return nil
}

// CreatePost stores a post and puts it at the top of the loaded items,
// whatever the sort mode.
func (s *Session) CreatePost(ctx context.Context, in service.CreatePostInput) (*models.Post, error) {
	viewer := s.Viewer()
	post, err := s.mutator.CreatePost(s.origin(ctx), viewer, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if findPost(s.items, post.ID) == nil {
		s.items = append([]*models.Post{post}, s.items...)
	}
	return post, nil
}

// CreateComment stores a comment, appends it to the post's loaded comments
// and counts it on the post.
func (s *Session) CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error) {
	viewer := s.Viewer()
	comment, err := s.mutator.CreateComment(s.origin(ctx), viewer, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addComment(comment)
	return comment, nil
}

// addComment must be called with s.mu held.
func (s *Session) addComment(c *models.Comment) {
	if list, ok := s.comments[c.PostID]; ok {
		if findComment(list, c.ID) != nil {
			return
		}
		s.comments[c.PostID] = append(list, c)
	}
	if p := findPost(s.items, c.PostID); p != nil {
		p.Comments++
	}
}

// OpenPost loads the comments of a post and marks it open.
func (s *Session) OpenPost(ctx context.Context, postID uuid.UUID) ([]CommentView, error) {
	viewer := s.Viewer()
	comments, err := s.assembler.ListComments(ctx, postID, viewer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[postID] = comments
	id := postID
	s.openPost = &id
	return RenderComments(comments, s.now()), nil
}

// ClosePost forgets which post is open.
func (s *Session) ClosePost() {
	s.mu.Lock()
	s.openPost = nil
	s.mu.Unlock()
}

// ShareURL returns the public link of a post.
func (s *Session) ShareURL(postID uuid.UUID) string {
	return ShareURL(s.baseURL, postID)
}

// ApplyEvent merges a change made elsewhere, including the same viewer's
// writes from another session or the HTTP API. Events published by this
// session's own writes are already merged and are skipped.
func (s *Session) ApplyEvent(ev models.FeedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Origin != "" && ev.Origin == s.id {
		return false
	}
	own := s.viewer != uuid.Nil && ev.ActorID == s.viewer

	switch ev.Type {
	case models.EventPostCreated:
		if ev.Post == nil || findPost(s.items, ev.Post.ID) != nil {
			return false
		}
		if s.topic != "" && ev.Post.Topic != s.topic {
			return false
		}
		p := ev.Post.Clone()
		if s.viewer != uuid.Nil {
			p.UserLiked = models.Bool(false)
		} else {
			p.UserLiked = nil
		}
		s.items = append([]*models.Post{p}, s.items...)
		return true
	case models.EventPostLiked:
		p := findPost(s.items, ev.PostID)
		if p == nil || ev.Likes == nil {
			return false
		}
		p.Likes = *ev.Likes
		if own && ev.Liked != nil {
			p.UserLiked = models.Bool(*ev.Liked)
		}
		return true
	case models.EventCommentCreated:
		if ev.Comment == nil {
			return false
		}
		c := *ev.Comment
		if s.viewer != uuid.Nil {
			c.UserLiked = models.Bool(false)
		} else {
			c.UserLiked = nil
		}
		s.addComment(&c)
		return true
	case models.EventCommentLiked:
		if ev.CommentID == nil || ev.Likes == nil {
			return false
		}
		c := findComment(s.comments[ev.PostID], *ev.CommentID)
		if c == nil {
			return false
		}
		c.Likes = *ev.Likes
		if own && ev.Liked != nil {
			c.UserLiked = models.Bool(*ev.Liked)
		}
		return true
	}
	return false
}

// Snapshot renders the loaded items through the search and density.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	snap := Snapshot{
		Token:   s.token,
		Viewer:  s.viewer,
		Topic:   s.topic,
		Sort:    s.sort,
		Density: s.density,
		Search:  s.search,
		Loading: s.loading,
		Error:   s.errMsg,
		Total:   len(s.items),
		Items:   Render(Filter(s.items, s.search), s.density, s.baseURL, now),
	}
	if s.openPost != nil {
		id := *s.openPost
		snap.OpenPost = &id
		snap.Comments = RenderComments(s.comments[id], now)
	}
	return snap
}

func findPost(items []*models.Post, id uuid.UUID) *models.Post {
	for _, p := range items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func findComment(list []*models.Comment, id uuid.UUID) *models.Comment {
	for _, c := range list {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Erro inesperado. Tente novamente."
}
