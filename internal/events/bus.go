package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types published by the devserver.
const (
	DocumentUploaded    = "document.uploaded"
	DocumentDeleted     = "document.deleted"
	DocumentReady       = "document.ready"
	DocumentFailed      = "document.failed"
	ConversationCreated = "conversation.created"
	ConversationDeleted = "conversation.deleted"
	ConversationMessage = "conversation.message"
)

const subscriberBuffer = 16

// Event represents a domain event emitted by the service.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Origin    string      `json:"origin,omitempty"`
}

// Bus multiplexes events to connected clients (local + Redis backed).
type Bus struct {
	client redis.UniversalClient
	logger zerolog.Logger
	ch     string
	origin string

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// Options configure the bus.
type Options struct {
	Client  redis.UniversalClient
	Logger  zerolog.Logger
	Channel string
}

// NewBus creates a new event bus. With a Redis client, events published by
// other instances on the same channel are relayed to local subscribers.
func NewBus(opts Options) *Bus {
	channel := opts.Channel
	if channel == "" {
		channel = "docai-events"
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		client:      opts.Client,
		logger:      opts.Logger.With().Str("component", "events").Logger(),
		ch:          channel,
		origin:      uuid.NewString(),
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[chan Event]struct{}),
	}
	if bus.client != nil {
		go bus.observeRedis(ctx)
	} else {
		close(bus.done)
	}
	return bus
}

// Publish broadcasts an event to all subscribers and Redis.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Origin = b.origin

	if b.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
			return errors.Wrap(err, "redis publish")
		}
	}

	b.broadcast(evt)
	return nil
}

// Subscribe registers a subscriber and returns a channel plus a cancel func.
// The channel is closed when ctx ends, cancel is called or the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, errors.New("event bus closed")
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close stops the Redis relay and closes every subscriber channel.
func (b *Bus) Close() {
	b.cancel()
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn().Str("event", evt.ID).Msg("dropping event (subscriber backlog)")
		}
	}
}

func (b *Bus) observeRedis(ctx context.Context) {
	defer close(b.done)
	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("redis subscriber error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Warn().Err(err).Msg("invalid event payload")
			continue
		}
		if evt.Origin == b.origin {
			continue
		}
		b.broadcast(evt)
	}
}
