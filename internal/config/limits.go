package config

import "time"

const (
	// Feedback
	MinRating = 1
	MaxRating = 5

	// Chat
	MaxMessageLength  = 4000
	MaxMediaRefLength = 2048

	// Reports
	MaxReportDescriptionLength = 2000

	// Telegram linking
	TelegramLinkCodeTTL    = 10 * time.Minute
	TelegramLinkCodeLength = 8
)
