package storage

import (
	"context"
	"skillsetu/backend/internal/models"
)

// Rating is the aggregate of feedback a user received on completed sessions.
type Rating struct {
	UserID  string  `json:"user_id"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// The rating a user receives is the one written by the other slot.
const averageRatingSQL = `
SELECT COALESCE(CAST(AVG(rating) AS DOUBLE PRECISION), 0) AS average, COUNT(*) AS count
FROM (
	SELECT feedback_b_rating AS rating FROM sessions
	WHERE participant_a = ? AND status = ? AND feedback_b_submitted_at IS NOT NULL
	UNION ALL
	SELECT feedback_a_rating AS rating FROM sessions
	WHERE participant_b = ? AND status = ? AND feedback_a_submitted_at IS NOT NULL
) AS received`

func (s *Service) AverageRating(ctx context.Context, userID string) (Rating, error) {
	completed := string(models.StatusCompleted)

	var row struct {
		Average float64
		Count   int64
	}
	err := s.DB.WithContext(ctx).
		Raw(averageRatingSQL, userID, completed, userID, completed).
		Scan(&row).Error
	if err != nil {
		return Rating{}, unavailable("average rating", err)
	}
	return Rating{UserID: userID, Average: row.Average, Count: row.Count}, nil
}
