package report_test

import (
	"context"
	"skillsetu/backend/internal/events"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/report"
	"skillsetu/backend/internal/storage/storagetest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(e.Type).Error(0)
}

func TestFileReport(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewSQLite(t)
	pub := new(MockPublisher)
	pub.On("Publish", events.ReportFiled).Return(nil)
	svc := report.NewService(store, pub, zaptest.NewLogger(t), time.Second)

	statuses := []models.SessionStatus{
		models.StatusPending,
		models.StatusAccepted,
		models.StatusCompleted,
		models.StatusCanceled,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			s := &models.Session{
				ParticipantA: "alice",
				ParticipantB: "bob",
				Skill:        "chess",
				ScheduledAt:  time.Now().UTC(),
				Status:       status,
			}
			require.NoError(t, store.CreateSession(ctx, s))

			id, err := svc.FileReport(ctx, "bob", s.ID, report.Input{
				Reason:      "Inappropriate Behavior",
				Description: "  rude  ",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			reports, err := svc.ListReports(ctx, s.ID)
			require.NoError(t, err)
			require.Len(t, reports, 1)
			assert.Equal(t, "bob", reports[0].ReporterID)
			assert.Equal(t, "alice", reports[0].TargetID)
			assert.Equal(t, models.ReasonInappropriate, reports[0].Reason)
			assert.Equal(t, "rude", reports[0].Description)
		})
	}
	pub.AssertNumberOfCalls(t, "Publish", len(statuses))
}

func TestFileReport_Rejections(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewSQLite(t)
	svc := report.NewService(store, nil, zaptest.NewLogger(t), time.Second)

	s := &models.Session{
		ParticipantA: "alice",
		ParticipantB: "bob",
		Skill:        "chess",
		ScheduledAt:  time.Now().UTC(),
		Status:       models.StatusAccepted,
	}
	require.NoError(t, store.CreateSession(ctx, s))

	_, err := svc.FileReport(ctx, "carol", s.ID, report.Input{Reason: "spam"})
	assert.ErrorIs(t, err, models.ErrInvalidSession)

	_, err = svc.FileReport(ctx, "alice", "00000000-0000-0000-0000-000000000000", report.Input{Reason: "spam"})
	assert.ErrorIs(t, err, models.ErrInvalidSession)

	_, err = svc.FileReport(ctx, "alice", s.ID, report.Input{Reason: "boring"})
	assert.ErrorIs(t, err, models.ErrInvalidReportReason)

	reports, err := svc.ListReports(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestFileReport_TruncatesDescription(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewSQLite(t)
	svc := report.NewService(store, nil, zaptest.NewLogger(t), time.Second)

	s := &models.Session{ParticipantA: "alice", ParticipantB: "bob", Skill: "chess", ScheduledAt: time.Now().UTC(), Status: models.StatusAccepted}
	require.NoError(t, store.CreateSession(ctx, s))

	_, err := svc.FileReport(ctx, "alice", s.ID, report.Input{Reason: "other", Description: strings.Repeat("x", 5000)})
	require.NoError(t, err)

	reports, err := svc.ListReports(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Description, 2000)
}

func TestFileReport_ZeroStoreTimeout(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewSQLite(t)
	svc := report.NewService(store, nil, zaptest.NewLogger(t), 0)

	s := &models.Session{ParticipantA: "alice", ParticipantB: "bob", Skill: "chess", ScheduledAt: time.Now().UTC(), Status: models.StatusAccepted}
	require.NoError(t, store.CreateSession(ctx, s))

	id, err := svc.FileReport(ctx, "alice", s.ID, report.Input{Reason: "spam"})
	require.NoError(t, err, "zero timeout means no deadline")
	assert.NotEmpty(t, id)

	reports, err := svc.ListReports(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
