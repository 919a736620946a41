package storage

import (
	"context"
	"errors"
	"skillsetu/backend/internal/models"
	"time"

	"gorm.io/gorm"
)

var terminalStatuses = []string{string(models.StatusCompleted), string(models.StatusCanceled)}

// CreateSession inserts a new session. The ID is generated by the model hook.
func (s *Service) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := s.DB.WithContext(ctx).Create(sess).Error; err != nil {
		return unavailable("create session", err)
	}
	return nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, models.ErrSessionNotFound
	}
	var sess models.Session
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}
	return &sess, nil
}

// CompareAndSetStatus is the only way a session status changes. The WHERE
// clause on the current status makes concurrent transitions race-free: at most
// one caller sees RowsAffected == 1.
func (s *Service) CompareAndSetStatus(
	ctx context.Context,
	id string,
	from, to models.SessionStatus,
	fb *models.FeedbackEntry,
) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status": string(to),
	}
	if to.IsTerminal() {
		updates["closed_at"] = now
	}
	if fb != nil {
		addFeedback(updates, *fb)
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, unavailable("compare and set status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetFeedback fills an empty feedback slot on a terminal session.
func (s *Service) SetFeedback(ctx context.Context, id string, fb models.FeedbackEntry) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	updates := map[string]interface{}{}
	addFeedback(updates, fb)

	res := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND status IN ? AND "+fb.Slot.ColumnPrefix()+"submitted_at IS NULL", id, terminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, unavailable("set feedback", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) SetSchedule(ctx context.Context, id string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND status = ?", id, string(models.StatusAccepted)).
		Update("scheduled_at", at.UTC())
	if res.Error != nil {
		return false, unavailable("set schedule", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByParticipant returns the user's sessions in one status. Open sessions
// come soonest first; closed ones most recently closed first.
func (s *Service) ListByParticipant(ctx context.Context, userID string, status models.SessionStatus) ([]models.Session, error) {
	order := "scheduled_at asc, created_at asc"
	if status.IsTerminal() {
		order = "closed_at desc, scheduled_at desc"
	}

	var sessions []models.Session
	err := s.DB.WithContext(ctx).
		Where("(participant_a = ? OR participant_b = ?) AND status = ?", userID, userID, string(status)).
		Order(order).
		Find(&sessions).Error
	if err != nil {
		return nil, unavailable("list sessions", err)
	}
	return sessions, nil
}

func addFeedback(updates map[string]interface{}, fb models.FeedbackEntry) {
	submittedAt := time.Now().UTC()
	if fb.Feedback.SubmittedAt != nil {
		submittedAt = fb.Feedback.SubmittedAt.UTC()
	}
	prefix := fb.Slot.ColumnPrefix()
	updates[prefix+"rating"] = fb.Feedback.Rating
	updates[prefix+"text"] = fb.Feedback.Text
	updates[prefix+"submitted_at"] = submittedAt
}
