// Package notify delivers lifecycle events to every connection a user has
// open, on this instance and, through the broker, on the others.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"skillsetu/backend/internal/broker"
	"skillsetu/backend/internal/realtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

type Hub struct {
	broker broker.Publisher
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]map[realtime.Conn]struct{}
}

// NewHub creates a hub. pub may be nil for single-instance deployments.
func NewHub(pub broker.Publisher, logger *zap.Logger) *Hub {
	return &Hub{
		broker: pub,
		logger: logger,
		conns:  make(map[string]map[realtime.Conn]struct{}),
	}
}

// Subscribe registers c for its user's notifications until c closes.
func (h *Hub) Subscribe(c realtime.Conn) {
	h.mu.Lock()
	set, ok := h.conns[c.UserID()]
	if !ok {
		set = make(map[realtime.Conn]struct{})
		h.conns[c.UserID()] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	c.OnClose(func() { h.Unsubscribe(c) })
	h.logger.Debug("Notification subscriber added",
		zap.String("user_id", c.UserID()),
		zap.String("conn_id", c.ID()),
	)
}

func (h *Hub) Unsubscribe(c realtime.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.UserID()]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.UserID())
	}
}

// Subscribers returns the number of local connections for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Publish sends the event to userID. Delivery is best effort: a user with no
// open connection simply misses it.
func (h *Hub) Publish(ctx context.Context, userID, event string, payload any) {
	h.deliver(userID, event, payload)

	if h.broker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := h.broker.Publish(ctx, broker.KindNotify, userID, event, payload); err != nil {
		h.logger.Warn("Failed to fan out notification",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// DeliverRemote hands a notification published by another instance to the
// local connections.
func (h *Hub) DeliverRemote(env broker.Envelope) {
	h.deliver(env.Key, env.Event, json.RawMessage(env.Payload))
}

func (h *Hub) deliver(userID, event string, payload any) {
	h.mu.RLock()
	targets := make([]realtime.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(event, payload); err != nil {
			h.logger.Warn("Dropping notification",
				zap.String("user_id", userID),
				zap.String("conn_id", c.ID()),
				zap.String("event", event),
				zap.Error(err),
			)
			if errors.Is(err, realtime.ErrSendBufferFull) {
				c.Close()
			}
		}
	}
}
