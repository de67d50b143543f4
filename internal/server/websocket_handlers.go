package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"quadra/internal/featureflags"
	"quadra/internal/feed"
	"quadra/internal/middleware"
	"quadra/internal/models"
	"quadra/internal/notifications"
	"quadra/internal/observability"
	"quadra/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Intents accepted on the live feed socket.
const (
	intentRefresh           = "refresh"
	intentSetFilter         = "set_filter"
	intentSetSort           = "set_sort"
	intentSetDensity        = "set_density"
	intentSetSearch         = "set_search"
	intentToggleLike        = "toggle_like"
	intentToggleCommentLike = "toggle_comment_like"
	intentCreatePost        = "create_post"
	intentCreateComment     = "create_comment"
	intentOpenPost          = "open_post"
	intentClosePost         = "close_post"
	intentShare             = "share"
)

// feedIntent is one message from a live feed client.
type feedIntent struct {
	Type      string                   `json:"type"`
	RequestID string                   `json:"request_id,omitempty"`
	Topic     string                   `json:"topic,omitempty"`
	Sort      string                   `json:"sort,omitempty"`
	Density   string                   `json:"density,omitempty"`
	Query     string                   `json:"query,omitempty"`
	PostID    uuid.UUID                `json:"post_id,omitempty"`
	CommentID uuid.UUID                `json:"comment_id,omitempty"`
	Content   string                   `json:"content,omitempty"`
	ReplyTo   *models.ReplyTarget      `json:"reply_to,omitempty"`
	Post      *service.CreatePostInput `json:"post,omitempty"`
}

// feedMessage is one message to a live feed client.
type feedMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

type feedError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WebSocketFeedHandler serves a live feed session per connection. Anonymous
// viewers may connect; mutating intents then fail with UNAUTHORIZED.
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		s.serveFeed(conn)
	})

	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(featureflags.LiveFeed, middleware.ViewerID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Feature", featureflags.LiveFeed))
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}

func (s *Server) serveFeed(conn *websocket.Conn) {
	viewer := uuid.Nil
	if v, ok := conn.Locals(middleware.ViewerLocal).(string); ok {
		viewer, _ = uuid.Parse(v)
	}

	client, err := s.hub.Register(viewer, conn)
	if err != nil {
		log.Printf("WebSocket Feed: failed to register viewer %s: %v", viewer, err)
		_ = conn.WriteJSON(feedMessage{Type: "error", Payload: feedError{Message: err.Error()}})
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if viewer != uuid.Nil {
		ctx = observability.WithViewer(ctx, viewer.String())
	}

	session := feed.NewSession(s.feedService, s.engagementService, s.mutationService, s.config.PublicBaseURL, viewer)

	client.IncomingHandler = func(c *notifications.Client, message []byte) {
		var in feedIntent
		if err := json.Unmarshal(message, &in); err != nil {
			log.Printf("WebSocket Feed: invalid message format from viewer %s", viewer)
			send(c, feedMessage{Type: "error", Payload: feedError{
				Code: models.CodeValidation, Message: "Mensagem inválida",
			}})
			return
		}
		s.handleFeedIntent(ctx, c, session, in)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-client.Events:
				if session.ApplyEvent(ev) {
					sendSnapshot(client, session, "")
				}
			}
		}
	}()

	go client.WritePump()

	go func() {
		_ = session.Refresh(ctx)
		sendSnapshot(client, session, "")
	}()

	client.ReadPump()
	close(client.Send)
}

// handleFeedIntent applies in to the session. Refetching intents run in the
// background so a newer one supersedes an older response.
func (s *Server) handleFeedIntent(ctx context.Context, c *notifications.Client, session *feed.Session, in feedIntent) {
	switch in.Type {
	case intentRefresh:
		go refetch(c, session, in.RequestID, func() error { return session.Refresh(ctx) })
	case intentSetFilter:
		topic, err := models.ParseTopic(in.Topic)
		if err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		go refetch(c, session, in.RequestID, func() error { return session.SetFilter(ctx, topic) })
	case intentSetSort:
		sort := models.ParseSortMode(in.Sort)
		go refetch(c, session, in.RequestID, func() error { return session.SetSort(ctx, sort) })
	case intentSetDensity:
		session.SetDensity(feed.ParseDensity(in.Density))
		sendSnapshot(c, session, in.RequestID)
	case intentSetSearch:
		session.SetSearch(in.Query)
		sendSnapshot(c, session, in.RequestID)
	case intentToggleLike:
		if err := session.ToggleLike(ctx, in.PostID); err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		sendSnapshot(c, session, in.RequestID)
	case intentToggleCommentLike:
		if err := session.ToggleCommentLike(ctx, in.PostID, in.CommentID); err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		sendSnapshot(c, session, in.RequestID)
	case intentCreatePost:
		if in.Post == nil {
			sendError(c, in.RequestID, models.NewValidationError("Invalid request body"))
			return
		}
		if _, err := session.CreatePost(ctx, *in.Post); err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		sendSnapshot(c, session, in.RequestID)
	case intentCreateComment:
		_, err := session.CreateComment(ctx, service.CreateCommentInput{
			PostID:  in.PostID,
			Content: in.Content,
			ReplyTo: in.ReplyTo,
		})
		if err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		sendSnapshot(c, session, in.RequestID)
	case intentOpenPost:
		if _, err := session.OpenPost(ctx, in.PostID); err != nil {
			sendError(c, in.RequestID, err)
			return
		}
		sendSnapshot(c, session, in.RequestID)
	case intentClosePost:
		session.ClosePost()
		sendSnapshot(c, session, in.RequestID)
	case intentShare:
		send(c, feedMessage{Type: "share", RequestID: in.RequestID, Payload: fiber.Map{
			"post_id": in.PostID,
			"url":     session.ShareURL(in.PostID),
		}})
	default:
		sendError(c, in.RequestID, models.NewValidationError("Unknown intent: "+in.Type))
	}
}

func refetch(c *notifications.Client, session *feed.Session, requestID string, fetch func() error) {
	if err := fetch(); errors.Is(err, feed.ErrStale) {
		return
	}
	// Fetch errors are part of the snapshot.
	sendSnapshot(c, session, requestID)
}

func sendSnapshot(c *notifications.Client, session *feed.Session, requestID string) {
	send(c, feedMessage{Type: "snapshot", RequestID: requestID, Payload: session.Snapshot()})
}

func sendError(c *notifications.Client, requestID string, err error) {
	send(c, feedMessage{Type: "error", RequestID: requestID, Payload: feedError{
		Code:    models.ErrorCode(err),
		Message: userMessage(err),
	}})
}

func send(c *notifications.Client, msg feedMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket Feed: failed to encode %s message: %v", msg.Type, err)
		return
	}
	c.TrySend(payload)
}
