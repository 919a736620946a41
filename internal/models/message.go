package models

import "time"

// Message is a persisted chat message. The auto-increment ID breaks ties
// between messages created within the same clock tick.
type Message struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// SessionID is the session that owns the message.
	SessionID string `gorm:"type:uuid;not null;index:idx_session_created" json:"session_id"`
	// SenderID is the participant who wrote the message.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// ReceiverID is the other participant at the time of sending.
	ReceiverID string `gorm:"type:text;not null" json:"receiver_id"`
	// Content is the message text, possibly empty when MediaRef is set.
	Content string `gorm:"type:text;not null" json:"content"`
	// MediaRef is an opaque reference to an externally stored attachment.
	MediaRef string `gorm:"type:text" json:"media_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_session_created" json:"created_at"`
}
