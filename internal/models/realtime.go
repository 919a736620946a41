package models

import "time"

// Event names pushed over the chat channel.
const (
	EventChatHistory    = "chat_history"
	EventReceiveMessage = "receive_message"
	EventError          = "error"
)

// Event names pushed over the notification channel.
const (
	EventSessionRequested   = "session_requested"
	EventSessionAccepted    = "session_accepted"
	EventSessionRescheduled = "session_rescheduled"
	EventSessionMarked      = "session_marked"
)

// Inbound frame types accepted from chat connections.
const (
	InboundSendMessage = "send_message"
)

// ChatMessage is the wire shape of a relayed chat message.
type ChatMessage struct {
	ID         uint      `json:"id"`
	SessionID  string    `json:"session_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	MediaRef   string    `json:"media_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChatMessage converts a persisted message to its wire shape.
func NewChatMessage(m *Message) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		SessionID:  m.SessionID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		MediaRef:   m.MediaRef,
		CreatedAt:  m.CreatedAt,
	}
}

// ChatHistory is the payload of the replay sent on join.
type ChatHistory struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

// SessionNotice is the payload of every lifecycle notification.
type SessionNotice struct {
	SessionID   string        `json:"session_id"`
	ActorID     string        `json:"actor_id"`
	Skill       string        `json:"skill"`
	Status      SessionStatus `json:"status"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	ChatBlocked bool          `json:"chat_blocked"`
}

// NewSessionNotice builds the notification payload for a change made by actorID.
func NewSessionNotice(s *Session, actorID string) SessionNotice {
	return SessionNotice{
		SessionID:   s.ID,
		ActorID:     actorID,
		Skill:       s.Skill,
		Status:      s.Status,
		ScheduledAt: s.ScheduledAt,
		ChatBlocked: s.ChatBlocked(),
	}
}

// ErrorNotice is sent to a connection when one of its frames is rejected.
type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
