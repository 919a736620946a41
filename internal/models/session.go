package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a learning session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusAccepted  SessionStatus = "accepted"
	StatusCompleted SessionStatus = "completed"
	StatusCanceled  SessionStatus = "canceled"
)

// IsTerminal reports whether the status can never change again.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// ParseOutcome normalizes a terminal outcome as sent by clients
// ("complete", "completed", "cancel", "cancelled", ...).
func ParseOutcome(raw string) (SessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "complete", "completed":
		return StatusCompleted, nil
	case "cancel", "canceled", "cancelled":
		return StatusCanceled, nil
	default:
		return "", ErrInvalidTransition
	}
}

// Slot identifies which side of a session a participant occupies.
// A is always the requester, B the target.
type Slot int

const (
	SlotA Slot = iota + 1
	SlotB
)

// Column prefix used by the embedded feedback fields of that slot.
func (s Slot) ColumnPrefix() string {
	if s == SlotA {
		return "feedback_a_"
	}
	return "feedback_b_"
}

// Feedback is the fixed-shape post-session rating left by one participant.
// A zero SubmittedAt means the participant has not given feedback yet.
type Feedback struct {
	Rating      int        `gorm:"type:integer" json:"rating"`
	Text        string     `gorm:"type:text" json:"text"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// Given reports whether the feedback record is present.
func (f Feedback) Given() bool {
	return f.SubmittedAt != nil
}

// FeedbackEntry pairs a feedback record with the slot it belongs to.
type FeedbackEntry struct {
	Slot     Slot
	Feedback Feedback
}

// Session is a scheduled learning engagement between two participants.
type Session struct {
	// ID is the unique identifier of the session (UUID).
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// ParticipantA is the user who requested the session.
	ParticipantA string `gorm:"type:text;not null;index" json:"participant_a"`
	// ParticipantB is the user the request was sent to.
	ParticipantB string `gorm:"type:text;not null;index" json:"participant_b"`
	// Skill is the free-text label of what is being taught.
	Skill string `gorm:"type:text;not null" json:"skill"`
	// ScheduledAt is the agreed meeting time, always stored in UTC.
	ScheduledAt time.Time     `gorm:"not null;index" json:"scheduled_at"`
	Status      SessionStatus `gorm:"type:text;not null;index" json:"status"`

	FeedbackByA Feedback `gorm:"embedded;embeddedPrefix:feedback_a_" json:"feedback_by_a"`
	FeedbackByB Feedback `gorm:"embedded;embeddedPrefix:feedback_b_" json:"feedback_by_b"`

	// ClosedAt is set when the session first becomes terminal.
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BeforeCreate generates the session UUID if it has not been set.
func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

// SlotOf returns the slot occupied by userID, or false if userID is not a participant.
func (s *Session) SlotOf(userID string) (Slot, bool) {
	switch userID {
	case "":
		return 0, false
	case s.ParticipantA:
		return SlotA, true
	case s.ParticipantB:
		return SlotB, true
	}
	return 0, false
}

// IsParticipant reports whether userID is one of the two participants.
func (s *Session) IsParticipant(userID string) bool {
	_, ok := s.SlotOf(userID)
	return ok
}

// OtherParticipant returns the counterpart of userID. The result is empty
// when userID is not a participant.
func (s *Session) OtherParticipant(userID string) string {
	switch userID {
	case s.ParticipantA:
		return s.ParticipantB
	case s.ParticipantB:
		return s.ParticipantA
	}
	return ""
}

// FeedbackFor returns the feedback record stored in the given slot.
func (s *Session) FeedbackFor(slot Slot) Feedback {
	if slot == SlotA {
		return s.FeedbackByA
	}
	return s.FeedbackByB
}

// FeedbackGivenBy reports whether userID has already submitted feedback.
func (s *Session) FeedbackGivenBy(userID string) bool {
	slot, ok := s.SlotOf(userID)
	if !ok {
		return false
	}
	return s.FeedbackFor(slot).Given()
}

func (s *Session) IsTerminal() bool {
	return s.Status.IsTerminal()
}

func (s *Session) BothFeedbackGiven() bool {
	return s.FeedbackByA.Given() && s.FeedbackByB.Given()
}

// ChatBlocked is true once the session is terminal and both participants
// have left feedback. Only then is messaging disabled.
func (s *Session) ChatBlocked() bool {
	return s.IsTerminal() && s.BothFeedbackGiven()
}

// FeedbackPending reports whether userID still owes feedback on a terminal session.
func (s *Session) FeedbackPending(userID string) bool {
	return s.IsTerminal() && !s.FeedbackGivenBy(userID)
}

// ChatOpen reports whether the session currently accepts chat traffic.
func (s *Session) ChatOpen() bool {
	return s.Status != StatusPending && !s.ChatBlocked()
}
