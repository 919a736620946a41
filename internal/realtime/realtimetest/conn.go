// Package realtimetest provides an in-memory realtime.Conn for tests.
package realtimetest

import (
	"encoding/json"
	"skillsetu/backend/internal/realtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Frame is one event sent to the connection.
type Frame struct {
	Event   string
	Payload any
}

// Decode converts the payload into v through its JSON form.
func (f Frame) Decode(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(f.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// Conn records every frame it is sent.
type Conn struct {
	id     string
	userID string

	mu      sync.Mutex
	frames  []Frame
	closed  bool
	onClose []func()
	// SendErr, when set, is returned by Send instead of recording.
	SendErr error

	ch chan Frame
}

func New(userID string) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		userID: userID,
		ch:     make(chan Frame, 256),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

func (c *Conn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	f := Frame{Event: event, Payload: payload}
	c.frames = append(c.frames, f)
	select {
	case c.ch <- f:
	default:
	}
	return nil
}

func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Frames returns a copy of everything sent so far.
func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Events returns the event names sent so far, in order.
func (c *Conn) Events() []string {
	frames := c.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

// Wait blocks until the next frame with the given event arrives.
func (c *Conn) Wait(t *testing.T, event string) Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f := <-c.ch:
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("conn %s: no %q event; got %v", c.userID, event, c.Events())
			return Frame{}
		}
	}
}
