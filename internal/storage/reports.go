package storage

import (
	"context"
	"skillsetu/backend/internal/models"
)

func (s *Service) CreateReport(ctx context.Context, r *models.Report) error {
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return unavailable("create report", err)
	}
	return nil
}

func (s *Service) ListReportsBySession(ctx context.Context, sessionID string) ([]models.Report, error) {
	if !validID(sessionID) {
		return nil, models.ErrSessionNotFound
	}
	var reports []models.Report
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&reports).Error
	if err != nil {
		return nil, unavailable("list reports", err)
	}
	return reports, nil
}
