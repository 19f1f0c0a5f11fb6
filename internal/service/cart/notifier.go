package cart

import (
	"context"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

const eventsChannel = "cart_events"

// Event signals that a shopper's cart changed; subscribers re-read the
// snapshot rather than receiving a diff.
type Event struct {
	Owner string `json:"owner"`
}

// Notifier fans cart change events out to any number of subscribers.
// With a Redis client attached, events also travel across instances
// over a pub/sub channel, so every tab sees mutations made elsewhere.
type Notifier struct {
	logger *log.Logger

	mu   sync.Mutex
	subs map[int]chan Event
	next int

	redis *redis.Client
}

func NewNotifier(logger *log.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// AttachRedis bridges the notifier over Redis pub/sub. Local fan-out
// then happens on message receipt, so each subscriber sees every event
// exactly once regardless of which instance published it.
func (n *Notifier) AttachRedis(ctx context.Context, client *redis.Client) {
	n.mu.Lock()
	n.redis = client
	n.mu.Unlock()

	sub := client.Subscribe(ctx, eventsChannel)
	go func() {
		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					_ = sub.Close()
					return
				}
				n.logger.Printf("cart events subscription error: %v", err)
				continue
			}
			n.fanOut(Event{Owner: msg.Payload})
		}
	}()
}

// Publish reports a change to the given owner's cart.
func (n *Notifier) Publish(ctx context.Context, owner string) {
	n.mu.Lock()
	client := n.redis
	n.mu.Unlock()

	if client != nil {
		if err := client.Publish(ctx, eventsChannel, owner).Err(); err != nil {
			n.logger.Printf("publish cart event: %v", err)
			n.fanOut(Event{Owner: owner})
		}
		return
	}
	n.fanOut(Event{Owner: owner})
}

// Subscribe registers a listener. The returned cancel func must be
// called to release the subscription.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *Notifier) fanOut(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscribers drop events; they re-read the full
			// snapshot on the next one anyway.
		}
	}
}
