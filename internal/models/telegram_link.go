package models

import "time"

// TelegramLink binds a user to the Telegram chat that receives their notifications.
type TelegramLink struct {
	UserID    string `gorm:"type:text;primaryKey"`
	ChatID    int64  `gorm:"not null;uniqueIndex"`
	Language  string `gorm:"type:text"`
	CreatedAt time.Time
}
