// Package notifications delivers live feed changes to connected sessions.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"quadra/internal/models"
	"quadra/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Max connections per viewer
	maxConnsPerViewer = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrViewerFull = errors.New("viewer connection limit reached")
)

// Hub tracks live feed clients by viewer. Anonymous clients share the
// uuid.Nil bucket.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uuid.UUID]map[*Client]struct{}
	totalConns int
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "feed hub" }

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uuid.UUID]map[*Client]struct{})}
}

// Register adds a connection for viewerID. It fails when limits are exceeded.
func (h *Hub) Register(viewerID uuid.UUID, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}

	m, ok := h.conns[viewerID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[viewerID] = m
	}
	if viewerID != uuid.Nil && len(m) >= maxConnsPerViewer {
		return nil, ErrViewerFull
	}

	client := NewClient(h, conn, viewerID)
	m[client] = struct{}{}
	h.totalConns++
	observability.LiveSessions.Inc()
	return client, nil
}

// UnregisterClient removes a client. Calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.conns[client.ViewerID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			observability.LiveSessions.Dec()
		}
		if len(m) == 0 {
			delete(h.conns, client.ViewerID)
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Dispatch hands ev to every client's event queue.
func (h *Hub) Dispatch(ev models.FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TryDeliver(ev)
		}
	}
}

// StartWiring connects the Notifier to this hub. With Redis, events come
// back through the feed channel so every instance sees them; without it
// they are dispatched in process.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if n.rdb == nil {
		n.setLocal(h.Dispatch)
		return nil
	}
	return n.StartSubscriber(ctx, func(payload string) {
		var ev models.FeedEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			log.Printf("invalid feed event payload: %v", err)
			return
		}
		h.Dispatch(ev)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for viewerID, viewerConns := range h.conns {
		for client := range viewerConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for viewer %s: %v", viewerID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for viewer %s: %v", viewerID, err)
			}
		}
	}
	observability.LiveSessions.Sub(float64(h.totalConns))
	h.conns = make(map[uuid.UUID]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
