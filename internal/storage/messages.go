package storage

import (
	"context"
	"errors"
	"skillsetu/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendMessage stores a chat message after re-reading the owning session in
// the same transaction. On Postgres the session row is locked so a concurrent
// feedback write cannot slip between the check and the insert.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if !validID(msg.SessionID) {
		return models.ErrSessionNotFound
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var sess models.Session
		if err := q.Where("id = ?", msg.SessionID).First(&sess).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrSessionNotFound
			}
			return err
		}
		if sess.ChatBlocked() {
			return models.ErrChatBlocked
		}

		return tx.Create(msg).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrChatBlocked):
		return err
	default:
		return unavailable("append message", err)
	}
}

// ListMessagesBySession returns the full history in insertion order. Messages
// of one session are inserted under the room lock, so the id sequence is the
// relay order even if the wall clock steps back.
func (s *Service) ListMessagesBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	if !validID(sessionID) {
		return nil, models.ErrSessionNotFound
	}
	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	return messages, nil
}
