package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"quadra/internal/models"
	"quadra/internal/observability"
	"quadra/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	invalidURLMessage    = "URL inválida. Certifique-se de incluir http:// ou https://"
	createPostMessage    = "Erro ao criar post. Tente novamente."
	createCommentMessage = "Erro ao enviar comentário. Tente novamente."
	maxTitleLen          = 300
	maxContentLen        = 50000
)

var webURLPattern = regexp.MustCompile(`(?i)^https?://`)

func isWebURL(s string) bool {
	return webURLPattern.MatchString(s)
}

type MutationService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	authors     AuthorLookup
	publisher   EventPublisher
}

type CreatePostInput struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Topic     string   `json:"topic"`
	MediaURLs []string `json:"media_urls"`
	Links     []string `json:"links"`
}

type CreateCommentInput struct {
	PostID  uuid.UUID           `json:"post_id"`
	Content string              `json:"content"`
	ReplyTo *models.ReplyTarget `json:"reply_to,omitempty"`
}

func NewMutationService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	authors AuthorLookup,
	publisher EventPublisher,
) *MutationService {
	return &MutationService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		authors:     authors,
		publisher:   publisher,
	}
}

// ValidatePost checks a draft without touching storage and returns the
// normalized post it would create.
func ValidatePost(in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" {
		return nil, models.NewValidationError("O título é obrigatório")
	}
	if content == "" {
		return nil, models.NewValidationError("O conteúdo é obrigatório")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("Título muito longo (máximo 300 caracteres)")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Conteúdo muito longo (máximo 50000 caracteres)")
	}

	topic, err := models.ParseTopic(in.Topic)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		topic = models.DefaultTopic
	}

	media, err := cleanURLs(in.MediaURLs)
	if err != nil {
		return nil, err
	}
	links, err := cleanURLs(in.Links)
	if err != nil {
		return nil, err
	}

	return &models.Post{
		Title:     title,
		Content:   content,
		Topic:     topic,
		MediaURLs: media,
		Links:     links,
	}, nil
}

func cleanURLs(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !isWebURL(u) {
			return nil, models.NewValidationError(invalidURLMessage)
		}
		out = append(out, u)
	}
	return out, nil
}

// CreatePost validates the draft, stores it and returns it as a feed item
// with no likes or comments.
func (s *MutationService) CreatePost(ctx context.Context, viewer uuid.UUID, in CreatePostInput) (*models.Post, error) {
	if viewer == uuid.Nil {
		return nil, models.NewUnauthorizedError("Login necessário")
	}
	post, err := ValidatePost(in)
	if err != nil {
		return nil, err
	}
	post.UserID = viewer

	observability.LogServiceCall(ctx, "MutationService", "CreatePost", map[string]interface{}{
		"topic": string(post.Topic),
	})

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewRemoteMutationError(createPostMessage, err)
	}

	post.Likes = 0
	post.Comments = 0
	post.UserLiked = models.Bool(false)
	post.Author = s.author(ctx, viewer)

	publish(ctx, s.publisher, models.FeedEvent{
		Type:    models.EventPostCreated,
		PostID:  post.ID,
		ActorID: viewer,
		Post:    post.Clone(),
	})
	return post, nil
}

// CreateComment stores a comment on an existing post.
func (s *MutationService) CreateComment(ctx context.Context, viewer uuid.UUID, in CreateCommentInput) (*models.Comment, error) {
	if viewer == uuid.Nil {
		return nil, models.NewUnauthorizedError("Login necessário")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("O comentário não pode estar vazio")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Comentário muito longo")
	}
	if in.PostID == uuid.Nil {
		return nil, models.NewValidationError("Post inválido")
	}
	var reply *models.ReplyTarget
	if in.ReplyTo != nil && in.ReplyTo.ID != uuid.Nil {
		r := *in.ReplyTo
		r.Username = strings.TrimSpace(r.Username)
		reply = &r
	}

	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		return nil, models.NewRemoteMutationError(createCommentMessage, err)
	}

	comment := &models.Comment{
		PostID:  in.PostID,
		UserID:  viewer,
		Content: content,
		ReplyTo: reply,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, models.NewRemoteMutationError(createCommentMessage, err)
	}
	comment.Likes = 0
	comment.UserLiked = models.Bool(false)
	comment.Author = s.author(ctx, viewer)

	cp := *comment
	publish(ctx, s.publisher, models.FeedEvent{
		Type:      models.EventCommentCreated,
		PostID:    comment.PostID,
		CommentID: &cp.ID,
		ActorID:   viewer,
		Comment:   &cp,
	})
	return comment, nil
}

func (s *MutationService) author(ctx context.Context, id uuid.UUID) models.Author {
	a, err := s.authors.Author(ctx, id)
	if err != nil {
		observability.LogDegraded(ctx, "author", err, 1)
		return models.UnknownAuthor(id)
	}
	return a
}
