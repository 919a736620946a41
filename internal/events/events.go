// Package events publishes domain events to RabbitMQ for downstream consumers
// such as matching, analytics and moderation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"skillsetu/backend/internal/models"
	"time"
)

type Type string

const (
	SessionRequested   Type = "session.requested"
	SessionAccepted    Type = "session.accepted"
	SessionRescheduled Type = "session.rescheduled"
	SessionMarked      Type = "session.marked"
	SessionClosed      Type = "session.closed"
	ReportFiled        Type = "report.filed"
)

// Event is the JSON body of every published message.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Data       any       `json:"data,omitempty"`
}

// SessionSnapshot is the session state attached to session events.
type SessionSnapshot struct {
	ParticipantA string               `json:"participant_a"`
	ParticipantB string               `json:"participant_b"`
	Skill        string               `json:"skill"`
	Status       models.SessionStatus `json:"status"`
	ScheduledAt  time.Time            `json:"scheduled_at"`
	ChatBlocked  bool                 `json:"chat_blocked"`
}

// NewSessionEvent builds a session event for a change made by actorID.
func NewSessionEvent(t Type, s *models.Session, actorID string) Event {
	return Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		SessionID:  s.ID,
		Data: SessionSnapshot{
			ParticipantA: s.ParticipantA,
			ParticipantB: s.ParticipantB,
			Skill:        s.Skill,
			Status:       s.Status,
			ScheduledAt:  s.ScheduledAt,
			ChatBlocked:  s.ChatBlocked(),
		},
	}
}

// ReportSnapshot is attached to report.filed. The description stays private.
type ReportSnapshot struct {
	ReportID string              `json:"report_id"`
	TargetID string              `json:"target_id"`
	Reason   models.ReportReason `json:"reason"`
}

func NewReportEvent(r *models.Report) Event {
	return Event{
		Type:       ReportFiled,
		OccurredAt: time.Now().UTC(),
		ActorID:    r.ReporterID,
		SessionID:  r.SessionID,
		Data: ReportSnapshot{
			ReportID: r.ID,
			TargetID: r.TargetID,
			Reason:   r.Reason,
		},
	}
}

// Encode returns the wire form of e.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return body, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
