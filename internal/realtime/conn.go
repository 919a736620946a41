// Package realtime defines the push connection shared by the chat and
// notification hubs, and its WebSocket implementation.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is any push channel to a single user: a WebSocket, a Telegram chat.
// Send must not block. A conn that cannot queue more reports ErrSendBufferFull
// and is evicted; a conn may instead shed its oldest queued items.
type Conn interface {
	ID() string
	UserID() string
	Send(event string, payload any) error
	// OnClose registers fn to run once when the connection closes.
	OnClose(fn func())
	Close()
}

// Outbound is the JSON frame written to clients.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EncodeOutbound renders an event frame.
func EncodeOutbound(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(Outbound{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return data, nil
}

// Inbound is a frame received from a chat client.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Media   string `json:"media,omitempty"`
}
