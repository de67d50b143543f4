package server

import (
	"time"

	"quadra/internal/feed"
	"quadra/internal/middleware"
	"quadra/internal/models"
	"quadra/internal/service"

	"github.com/gofiber/fiber/v2"
)

// TopicDTO is one selectable topic.
type TopicDTO struct {
	Value models.Topic `json:"value"`
	Label string       `json:"label"`
}

// FeedResponse is the rendered feed.
type FeedResponse struct {
	Topic   models.Topic    `json:"topic,omitempty"`
	Sort    models.SortMode `json:"sort"`
	Density feed.Density    `json:"density"`
	Search  string          `json:"search,omitempty"`
	Total   int             `json:"total"`
	Items   []feed.ItemView `json:"items"`
}

// GetTopics handles GET /api/topics
// @Summary List topics
// @Description List the post topics in display order.
// @Tags feed
// @Produce json
// @Success 200 {array} TopicDTO
// @Router /topics [get]
func (s *Server) GetTopics(c *fiber.Ctx) error {
	out := make([]TopicDTO, 0, len(models.Topics))
	for _, t := range models.Topics {
		out = append(out, TopicDTO{Value: t, Label: t.Label()})
	}
	return c.JSON(out)
}

// GetFeed handles GET /api/feed?topic=&sort=&q=&view=
// @Summary Community feed
// @Description Assemble the feed for a topic and sort mode, narrowed by a search query.
// @Tags feed
// @Produce json
// @Param topic query string false "Topic filter"
// @Param sort query string false "recent, popular or trending"
// @Param q query string false "Search query"
// @Param view query string false "card or compact"
// @Success 200 {object} FeedResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()

	topic, err := models.ParseTopic(c.Query("topic"))
	if err != nil {
		return respondError(c, err)
	}
	sort := models.ParseSortMode(c.Query("sort"))
	density := feed.ParseDensity(c.Query("view"))
	search := c.Query("q")

	items, err := s.feedService.Assemble(ctx, service.FeedQuery{
		Viewer: middleware.ViewerID(c),
		Topic:  topic,
		Sort:   sort,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(FeedResponse{
		Topic:   topic,
		Sort:    sort,
		Density: density,
		Search:  search,
		Total:   len(items),
		Items:   feed.Render(feed.Filter(items, search), density, s.config.PublicBaseURL, time.Now()),
	})
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.feedService.GetPost(c.UserContext(), postID, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}

	views := feed.Render([]*models.Post{post}, feed.ParseDensity(c.Query("view")), s.config.PublicBaseURL, time.Now())
	return c.JSON(views[0])
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Description Comments of a post, oldest first.
// @Tags feed
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {array} feed.CommentView
// @Failure 502 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.feedService.ListComments(c.UserContext(), postID, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed.RenderComments(comments, time.Now()))
}

// GetFeatureFlags handles GET /api/flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(middleware.ViewerID(c)))
}
