package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"quadra/internal/models"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis channel carrying feed events.
const FeedChannel = "feed:events"

// Notifier publishes feed events into Redis.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(models.FeedEvent)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client keeps events in process.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) setLocal(fn func(models.FeedEvent)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// PublishFeedEvent sends ev to every live session.
func (n *Notifier) PublishFeedEvent(ctx context.Context, ev models.FeedEvent) error {
	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(ev)
		}
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	return n.rdb.Publish(ctx, FeedChannel, string(payload)).Err()
}

// StartSubscriber subscribes to the feed channel and calls onMessage for each
// payload until ctx is done.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in FeedSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
