package server

import (
	"context"
	"time"

	"quadra/internal/feed"
	"quadra/internal/middleware"
	"quadra/internal/models"
	"quadra/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param post body service.CreatePostInput true "Draft"
// @Success 201 {object} feed.ItemView
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.mutationService.CreatePost(c.UserContext(), middleware.ViewerID(c), req)
	if err != nil {
		return respondError(c, err)
	}

	views := feed.Render([]*models.Post{post}, feed.DensityCard, s.config.PublicBaseURL, time.Now())
	return c.Status(fiber.StatusCreated).JSON(views[0])
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 201 {object} feed.CommentView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string              `json:"content"`
		ReplyTo *models.ReplyTarget `json:"reply_to,omitempty"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.mutationService.CreateComment(c.UserContext(), middleware.ViewerID(c), service.CreateCommentInput{
		PostID:  postID,
		Content: req.Content,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return respondError(c, err)
	}

	views := feed.RenderComments([]*models.Comment{comment}, time.Now())
	return c.Status(fiber.StatusCreated).JSON(views[0])
}

// TogglePostLike handles POST /api/posts/:id/like
// The optional body carries the state the client currently shows; it is
// echoed back when the toggle fails.
// @Summary Toggle post like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} service.LikeState
// @Router /posts/{id}/like [post]
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	return s.toggleLike(c, s.engagementService.TogglePostLike)
}

// ToggleCommentLike handles POST /api/comments/:id/like
// @Summary Toggle comment like
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Comment ID"
// @Success 200 {object} service.LikeState
// @Router /comments/{id}/like [post]
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	return s.toggleLike(c, s.engagementService.ToggleCommentLike)
}

type toggleFunc func(ctx context.Context, viewer, id uuid.UUID, current service.LikeState) (service.LikeState, error)

func (s *Server) toggleLike(c *fiber.Ctx, toggle toggleFunc) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	var current service.LikeState
	if len(c.Body()) > 0 {
		if err := parseBody(c, &current); err != nil {
			return nil
		}
	}

	next, err := toggle(c.UserContext(), middleware.ViewerID(c), id, current)
	if err != nil {
		return c.Status(models.StatusFor(err)).JSON(fiber.Map{
			"error": userMessage(err),
			"code":  models.ErrorCode(err),
			"state": next,
		})
	}
	return c.JSON(next)
}
