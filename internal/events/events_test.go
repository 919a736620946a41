package events_test

import (
	"context"
	"encoding/json"
	"skillsetu/backend/internal/events"
	"skillsetu/backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SessionEvent(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &models.Session{
		ID:           "s1",
		ParticipantA: "alice",
		ParticipantB: "bob",
		Skill:        "go",
		ScheduledAt:  at,
		Status:       models.StatusAccepted,
	}

	body, err := events.Encode(events.NewSessionEvent(events.SessionAccepted, s, "bob"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "session.accepted", got["type"])
	assert.Equal(t, "bob", got["actor_id"])
	assert.Equal(t, "s1", got["session_id"])

	data := got["data"].(map[string]any)
	assert.Equal(t, "alice", data["participant_a"])
	assert.Equal(t, "accepted", data["status"])
	assert.Equal(t, false, data["chat_blocked"])
}

func TestEncode_ReportEventOmitsDescription(t *testing.T) {
	r := &models.Report{
		ID:          "r1",
		SessionID:   "s1",
		ReporterID:  "alice",
		TargetID:    "bob",
		Reason:      models.ReasonHarassment,
		Description: "private details",
	}

	body, err := events.Encode(events.NewReportEvent(r))
	require.NoError(t, err)

	assert.Contains(t, string(body), `"report.filed"`)
	assert.Contains(t, string(body), `"harassment"`)
	assert.NotContains(t, string(body), "private details")
}

func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.Publish(context.Background(), events.Event{Type: events.SessionClosed}))
}
