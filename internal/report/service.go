// Package report handles abuse reports filed by one session participant
// against the other. Moderation itself happens downstream.
package report

import (
	"context"
	"errors"
	"skillsetu/backend/internal/config"
	"skillsetu/backend/internal/events"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/storage"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Input is what the reporter submits.
type Input struct {
	Reason        string
	Description   string
	AttachmentRef string
}

// Store is the part of storage report intake needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	storage.ReportStore
}

type Service struct {
	store        Store
	events       events.Publisher
	logger       *zap.Logger
	storeTimeout time.Duration
}

func NewService(store Store, pub events.Publisher, logger *zap.Logger, storeTimeout time.Duration) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:        store,
		events:       pub,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// FileReport stores a report against the other participant of the session.
// Reports are accepted in every session status.
func (s *Service) FileReport(ctx context.Context, reporter, sessionID string, in Input) (string, error) {
	reason, err := models.ParseReportReason(in.Reason)
	if err != nil {
		return "", err
	}
	description := strings.TrimSpace(in.Description)
	if runes := []rune(description); len(runes) > config.MaxReportDescriptionLength {
		description = string(runes[:config.MaxReportDescriptionLength])
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.store.GetSession(sctx, sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return "", models.ErrInvalidSession
	}
	if err != nil {
		return "", err
	}
	if !sess.IsParticipant(reporter) {
		return "", models.ErrInvalidSession
	}

	r := &models.Report{
		SessionID:     sessionID,
		ReporterID:    reporter,
		TargetID:      sess.OtherParticipant(reporter),
		Reason:        reason,
		Description:   description,
		AttachmentRef: strings.TrimSpace(in.AttachmentRef),
	}
	if err := s.store.CreateReport(sctx, r); err != nil {
		return "", err
	}

	s.logger.Info("Report filed",
		zap.String("report_id", r.ID),
		zap.String("session_id", sessionID),
		zap.String("reporter", reporter),
		zap.String("reason", string(reason)),
	)
	if err := s.events.Publish(sctx, events.NewReportEvent(r)); err != nil {
		s.logger.Warn("Failed to publish report event", zap.String("report_id", r.ID), zap.Error(err))
	}
	return r.ID, nil
}

// ListReports returns the reports filed on a session, oldest first.
func (s *Service) ListReports(ctx context.Context, sessionID string) ([]models.Report, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListReportsBySession(sctx, sessionID)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
