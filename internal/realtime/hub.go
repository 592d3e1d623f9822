/**
 * @description
 * Fan-out hub for the realtime change-notification bus.
 * Multiplexes Redis pub/sub channels to many in-process subscribers without
 * spawning a Redis subscription per listener.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hub multiplexes Redis pub/sub messages to many subscribers. One upstream
// Redis subscription is held per channel name, shared by every local listener.
type Hub struct {
	redis *redis.Client

	mu       sync.Mutex
	channels map[string]*channelHub
}

// channelHub owns the upstream subscription for a single channel name
type channelHub struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	cancel      context.CancelFunc
	closed      bool // set when the last subscriber left; the run goroutine is gone
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		redis:    rdb,
		channels: make(map[string]*channelHub),
	}
}

// Subscribe registers a listener on a channel and returns the message stream
// plus a cancel function. Cancel is idempotent; callers must invoke it on
// teardown or the upstream subscription leaks across navigation.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	sub := make(chan []byte, 512)

	var ch *channelHub
	for {
		h.mu.Lock()
		hub, ok := h.channels[channel]
		if !ok {
			ctx, cancel := context.WithCancel(context.Background())
			hub = &channelHub{
				subscribers: make(map[chan []byte]struct{}),
				cancel:      cancel,
			}
			h.channels[channel] = hub
			go h.run(ctx, channel, hub)
		}
		h.mu.Unlock()

		hub.mu.Lock()
		if hub.closed {
			// Lost the race against the final unsubscribe tearing this hub
			// down; its run goroutine is gone and would never deliver. Retry
			// against a fresh hub once the dead one leaves the registry.
			hub.mu.Unlock()
			continue
		}
		hub.subscribers[sub] = struct{}{}
		hub.mu.Unlock()
		ch = hub
		break
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			ch.mu.Lock()
			if _, ok := ch.subscribers[sub]; ok {
				delete(ch.subscribers, sub)
				close(sub)
			}
			empty := len(ch.subscribers) == 0
			if empty {
				// Flag before the registry delete so a racing Subscribe that
				// already holds this hub refuses to join it
				ch.closed = true
			}
			ch.mu.Unlock()

			if empty {
				h.mu.Lock()
				if h.channels[channel] == ch {
					delete(h.channels, channel)
				}
				h.mu.Unlock()
				ch.cancel()
			}
		})
	}

	return sub, unsubscribe
}

func (h *Hub) run(ctx context.Context, channel string, ch *channelHub) {
	for {
		pubsub := h.redis.Subscribe(ctx, channel)
		msgs := pubsub.Channel(redis.WithChannelSize(16384))

	recv:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					break recv
				}
				ch.broadcast([]byte(msg.Payload))
			}
		}

		_ = pubsub.Close()

		// Avoid tight loop if Redis connection drops
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (ch *channelHub) broadcast(payload []byte) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	for sub := range ch.subscribers {
		select {
		case sub <- payload:
		default:
			// Subscriber is too slow; drop its oldest message to keep the hub responsive
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- payload:
			default:
			}
		}
	}
}
