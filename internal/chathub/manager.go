// Package chathub runs the per-session chat rooms: admission, history
// replay, persistence and relay of messages between participants.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"skillsetu/backend/internal/broker"
	"skillsetu/backend/internal/config"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/realtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Store is the part of storage the chat needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessagesBySession(ctx context.Context, sessionID string) ([]models.Message, error)
}

type room struct {
	id      string
	mu      sync.Mutex
	members map[realtime.Conn]string
	// closed is set when the room is pruned; a closed room is never reused.
	closed bool
}

type Manager struct {
	store        Store
	broker       broker.Publisher
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time

	// Lock order: room.mu, then mu or idxMu. Never room.mu while holding mu.
	mu    sync.Mutex
	rooms map[string]*room

	idxMu sync.Mutex
	index map[realtime.Conn]*room
}

// NewManager creates a chat manager. pub may be nil for single-instance
// deployments.
func NewManager(store Store, pub broker.Publisher, logger *zap.Logger, storeTimeout time.Duration) *Manager {
	return &Manager{
		store:        store,
		broker:       pub,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		rooms:        make(map[string]*room),
		index:        make(map[realtime.Conn]*room),
	}
}

// Join admits conn to the session room and replays the history to it.
func (m *Manager) Join(ctx context.Context, conn realtime.Conn, sessionID string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if _, err := m.authorize(ctx, sessionID, conn.UserID()); err != nil {
		return err
	}

	// A connection belongs to at most one room; the close hook is registered
	// the first time it joins one.
	if !m.Leave(conn) {
		conn.OnClose(func() { m.Leave(conn) })
	}

	r := m.acquire(sessionID)
	history, err := m.store.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		m.pruneLocked(r)
		r.mu.Unlock()
		return err
	}

	wire := make([]models.ChatMessage, len(history))
	for i := range history {
		wire[i] = models.NewChatMessage(&history[i])
	}
	if err := conn.Send(models.EventChatHistory, models.ChatHistory{SessionID: sessionID, Messages: wire}); err != nil {
		m.pruneLocked(r)
		r.mu.Unlock()
		conn.Close()
		return err
	}

	r.members[conn] = conn.UserID()
	m.idxMu.Lock()
	m.index[conn] = r
	m.idxMu.Unlock()
	r.mu.Unlock()

	m.logger.Info("Participant joined chat",
		zap.String("session_id", sessionID),
		zap.String("user_id", conn.UserID()),
		zap.String("conn_id", conn.ID()),
		zap.Int("history", len(history)),
	)
	return nil
}

// Leave removes conn from its room. It reports whether conn had been in one.
func (m *Manager) Leave(conn realtime.Conn) bool {
	m.idxMu.Lock()
	r, ok := m.index[conn]
	delete(m.index, conn)
	m.idxMu.Unlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	delete(r.members, conn)
	m.pruneLocked(r)
	r.mu.Unlock()
	return true
}

// Send persists a message from a joined connection and relays it to the
// other members of its room.
func (m *Manager) Send(ctx context.Context, conn realtime.Conn, content, media string) (*models.Message, error) {
	m.idxMu.Lock()
	r, ok := m.index[conn]
	m.idxMu.Unlock()
	if !ok {
		return nil, models.ErrUnauthorized
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, models.ErrUnauthorized
	}
	msg, evicted, err := m.relayLocked(ctx, r, conn.UserID(), conn, content, media)
	m.pruneLocked(r)
	r.mu.Unlock()

	closeAll(evicted)
	return msg, err
}

// Post is Send for a participant without a live connection.
func (m *Manager) Post(ctx context.Context, sessionID, userID, content, media string) (*models.Message, error) {
	r := m.acquire(sessionID)
	msg, evicted, err := m.relayLocked(ctx, r, userID, nil, content, media)
	m.pruneLocked(r)
	r.mu.Unlock()

	closeAll(evicted)
	return msg, err
}

// History returns the persisted messages of a session to one of its participants.
func (m *Manager) History(ctx context.Context, sessionID, userID string) ([]models.Message, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(userID) {
		return nil, models.ErrUnauthorized
	}
	return m.store.ListMessagesBySession(ctx, sessionID)
}

// DeliverRemote relays a message persisted by another instance to the local
// members of the room.
func (m *Manager) DeliverRemote(env broker.Envelope) {
	m.mu.Lock()
	r, ok := m.rooms[env.Key]
	m.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	evicted := m.deliverLocked(r, nil, env.Event, json.RawMessage(env.Payload))
	m.pruneLocked(r)
	r.mu.Unlock()

	closeAll(evicted)
}

// Members returns the number of local connections in the session room.
func (m *Manager) Members(sessionID string) int {
	m.mu.Lock()
	r, ok := m.rooms[sessionID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// authorize checks that userID may use the session chat right now.
func (m *Manager) authorize(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(userID) || sess.Status == models.StatusPending {
		return nil, models.ErrUnauthorized
	}
	if sess.ChatBlocked() {
		return nil, models.ErrChatBlocked
	}
	return sess, nil
}

// relayLocked validates, persists and relays one message. r.mu must be held,
// so relay order within a room equals persistence order.
func (m *Manager) relayLocked(
	ctx context.Context,
	r *room,
	userID string,
	sender realtime.Conn,
	content, media string,
) (*models.Message, []realtime.Conn, error) {
	content = strings.TrimSpace(content)
	media = strings.TrimSpace(media)
	if content == "" && media == "" {
		return nil, nil, models.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > config.MaxMessageLength || len(media) > config.MaxMediaRefLength {
		return nil, nil, models.ErrMessageTooLong
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	sess, err := m.authorize(ctx, r.id, userID)
	if err != nil {
		return nil, nil, err
	}

	msg := &models.Message{
		SessionID:  r.id,
		SenderID:   userID,
		ReceiverID: sess.OtherParticipant(userID),
		Content:    content,
		MediaRef:   media,
		CreatedAt:  m.now(),
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, nil, models.ErrUnauthorized
		}
		return nil, nil, err
	}

	wire := models.NewChatMessage(msg)
	evicted := m.deliverLocked(r, sender, models.EventReceiveMessage, wire)

	if m.broker != nil {
		if err := m.broker.Publish(ctx, broker.KindChat, r.id, models.EventReceiveMessage, wire); err != nil {
			m.logger.Warn("Failed to fan out chat message",
				zap.String("session_id", r.id),
				zap.Uint("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return msg, evicted, nil
}

// deliverLocked sends the event to every member except skip. Members whose
// send fails are removed and returned so the caller can close them after
// releasing the room lock.
func (m *Manager) deliverLocked(r *room, skip realtime.Conn, event string, payload any) []realtime.Conn {
	var evicted []realtime.Conn
	for c := range r.members {
		if c == skip {
			continue
		}
		if err := c.Send(event, payload); err != nil {
			m.logger.Warn("Evicting chat member",
				zap.String("session_id", r.id),
				zap.String("user_id", c.UserID()),
				zap.String("conn_id", c.ID()),
				zap.Error(err),
			)
			delete(r.members, c)
			m.idxMu.Lock()
			delete(m.index, c)
			m.idxMu.Unlock()
			evicted = append(evicted, c)
		}
	}
	return evicted
}

// acquire returns the live room for sessionID, locked.
func (m *Manager) acquire(sessionID string) *room {
	for {
		m.mu.Lock()
		r, ok := m.rooms[sessionID]
		if !ok {
			r = &room{id: sessionID, members: make(map[realtime.Conn]string)}
			m.rooms[sessionID] = r
		}
		m.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		r.mu.Unlock()
	}
}

// pruneLocked drops an empty room. r.mu must be held.
func (m *Manager) pruneLocked(r *room) {
	if len(r.members) > 0 || r.closed {
		return
	}
	r.closed = true
	m.mu.Lock()
	if m.rooms[r.id] == r {
		delete(m.rooms, r.id)
	}
	m.mu.Unlock()
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.storeTimeout)
}

func closeAll(conns []realtime.Conn) {
	for _, c := range conns {
		c.Close()
	}
}
