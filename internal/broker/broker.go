// Package broker fans chat and notification traffic out to the other API
// instances over Redis Pub/Sub.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "skillsetu:"

type Kind string

const (
	KindChat   Kind = "chat"
	KindNotify Kind = "notify"
)

// Envelope is the message carried on a Redis channel. Key is the session ID
// for chat traffic and the user ID for notifications.
type Envelope struct {
	Origin  string          `json:"origin"`
	Kind    Kind            `json:"kind"`
	Key     string          `json:"key"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type Handler func(Envelope)

// Publisher is what the hubs need from the broker.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, key, event string, payload any) error
}

type Broker struct {
	rdb    *redis.Client
	origin string
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[Kind]Handler

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a broker for this instance. Messages published with the same
// origin are ignored when they come back.
func New(rdb *redis.Client, origin string, logger *zap.Logger) *Broker {
	return &Broker{
		rdb:      rdb,
		origin:   origin,
		logger:   logger,
		handlers: make(map[Kind]Handler),
		ready:    make(chan struct{}),
	}
}

// Channel returns the Redis channel for a kind and key.
func Channel(kind Kind, key string) string {
	return channelPrefix + string(kind) + ":" + key
}

// Handle registers the receiver for remote envelopes of kind.
func (b *Broker) Handle(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = h
}

func (b *Broker) Publish(ctx context.Context, kind Kind, key, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(Envelope{
		Origin:  b.origin,
		Kind:    kind,
		Key:     key,
		Event:   event,
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(kind, key), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel(kind, key), err)
	}
	return nil
}

// Ready is closed once the subscription is active.
func (b *Broker) Ready() <-chan struct{} {
	return b.ready
}

// Run listens on every skillsetu channel until ctx is canceled.
func (b *Broker) Run(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("Broker subscribed", zap.String("origin", b.origin))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (b *Broker) dispatch(channel, payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("Dropping malformed broker message",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if !strings.HasSuffix(channel, ":"+env.Key) {
		b.logger.Warn("Broker message key does not match channel",
			zap.String("channel", channel),
			zap.String("key", env.Key),
		)
		return
	}

	b.mu.RLock()
	h := b.handlers[env.Kind]
	b.mu.RUnlock()
	if h != nil {
		h(env)
	}
}
