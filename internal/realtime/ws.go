package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 64
)

// WSConn is a Conn over a gorilla WebSocket.
type WSConn struct {
	id     string
	userID string
	ws     *websocket.Conn
	logger *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	onClose   []func()
	onMessage func(Inbound)
}

func NewWSConn(ws *websocket.Conn, userID string, logger *zap.Logger) *WSConn {
	id := uuid.New().String()
	return &WSConn{
		id:     id,
		userID: userID,
		ws:     ws,
		logger: logger.With(zap.String("conn_id", id), zap.String("user_id", userID)),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *WSConn) ID() string     { return c.id }
func (c *WSConn) UserID() string { return c.userID }

// OnMessage sets the handler for inbound frames. Set it before Run.
func (c *WSConn) OnMessage(fn func(Inbound)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *WSConn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

func (c *WSConn) Send(event string, payload any) error {
	data, err := EncodeOutbound(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the pumps and runs the close hooks once.
func (c *WSConn) Close() {
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

// Run starts the read and write pumps.
func (c *WSConn) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WSConn) readPump() {
	defer func() {
		c.Close()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read failed", zap.Error(err))
			}
			return
		}

		var frame Inbound
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Debug("Ignoring malformed frame", zap.Error(err))
			_ = c.Send("error", map[string]string{"code": "bad_frame", "message": "frame is not valid JSON"})
			continue
		}

		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(frame)
		}
	}
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
