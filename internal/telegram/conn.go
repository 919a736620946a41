package telegram

import (
	"skillsetu/backend/internal/localization"
	"skillsetu/backend/internal/realtime"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const sendBufferSize = 32

type outbound struct {
	event   string
	payload any
}

// Conn delivers a user's notifications to their linked Telegram chat.
type Conn struct {
	userID    string
	chatID    int64
	lang      string
	sender    Sender
	localizer *localization.Localizer
	logger    *zap.Logger

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	onClose []func()
}

func NewConn(userID string, chatID int64, lang string, sender Sender, l *localization.Localizer, logger *zap.Logger) *Conn {
	return &Conn{
		userID:    userID,
		chatID:    chatID,
		lang:      lang,
		sender:    sender,
		localizer: l,
		logger:    logger.With(zap.String("user_id", userID), zap.Int64("chat_id", chatID)),
		send:      make(chan outbound, sendBufferSize),
		done:      make(chan struct{}),
	}
}

func (c *Conn) ID() string     { return "tg:" + strconv.FormatInt(c.chatID, 10) }
func (c *Conn) UserID() string { return c.userID }
func (c *Conn) ChatID() int64  { return c.chatID }

func (c *Conn) Send(event string, payload any) error {
	select {
	case <-c.done:
		return realtime.ErrConnClosed
	default:
	}
	msg := outbound{event: event, payload: payload}
	// A full buffer drops the oldest notice; the chat stays subscribed.
	for {
		select {
		case c.send <- msg:
			return nil
		default:
		}
		select {
		case dropped := <-c.send:
			c.logger.Debug("Dropping queued Telegram notification", zap.String("event", dropped.event))
		default:
		}
	}
}

func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		hooks := c.onClose
		c.onClose = nil
		c.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}
	})
}

// Run starts the write pump.
func (c *Conn) Run() {
	go c.writePump()
}

func (c *Conn) writePump() {
	defer c.logger.Debug("Telegram write pump stopped")

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			text := FormatNotice(c.localizer, c.lang, msg.event, msg.payload)
			if err := c.sender.SendText(c.chatID, text); err != nil {
				c.logger.Warn("Failed to send Telegram notification",
					zap.String("event", msg.event),
					zap.Error(err),
				)
			}
		}
	}
}
