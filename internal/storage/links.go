package storage

import (
	"context"
	"errors"
	"skillsetu/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const linkCodePrefix = "skillsetu:tglink:"

// SaveTelegramLink upserts the binding for the user. A chat that was bound to
// another user is released first.
func (s *Service) SaveTelegramLink(ctx context.Context, link *models.TelegramLink) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND user_id <> ?", link.ChatID, link.UserID).
			Delete(&models.TelegramLink{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "language"}),
		}).Create(link).Error
	})
	if err != nil {
		return unavailable("save telegram link", err)
	}
	return nil
}

func (s *Service) GetTelegramLinkByChat(ctx context.Context, chatID int64) (*models.TelegramLink, error) {
	var link models.TelegramLink
	err := s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, unavailable("get telegram link", err)
	}
	return &link, nil
}

func (s *Service) DeleteTelegramLink(ctx context.Context, userID string) error {
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TelegramLink{}).Error; err != nil {
		return unavailable("delete telegram link", err)
	}
	return nil
}

func (s *Service) ListTelegramLinks(ctx context.Context) ([]models.TelegramLink, error) {
	var links []models.TelegramLink
	if err := s.DB.WithContext(ctx).Order("created_at asc").Find(&links).Error; err != nil {
		return nil, unavailable("list telegram links", err)
	}
	return links, nil
}

// SaveLinkCode stores a one-time code that binds a Telegram chat to userID.
func (s *Service) SaveLinkCode(ctx context.Context, code, userID string, ttl time.Duration) error {
	if s.Redis == nil {
		return ErrRedisDisabled
	}
	if err := s.Redis.Set(ctx, linkCodePrefix+code, userID, ttl).Err(); err != nil {
		return unavailable("save link code", err)
	}
	return nil
}

// ConsumeLinkCode returns the user behind the code and deletes it, so every
// code works at most once.
func (s *Service) ConsumeLinkCode(ctx context.Context, code string) (string, error) {
	if s.Redis == nil {
		return "", ErrRedisDisabled
	}
	userID, err := s.Redis.GetDel(ctx, linkCodePrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLinkCodeNotFound
	}
	if err != nil {
		return "", unavailable("consume link code", err)
	}
	return userID, nil
}
