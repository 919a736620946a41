package storage

import (
	"context"
	"errors"
	"fmt"
	"skillsetu/backend/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SessionStore is the durable record of sessions and their feedback.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// CompareAndSetStatus moves the session from one status to another only if
	// it is still in from. The optional feedback is written in the same statement.
	CompareAndSetStatus(ctx context.Context, id string, from, to models.SessionStatus, fb *models.FeedbackEntry) (bool, error)
	// SetFeedback attaches feedback to a terminal session whose slot is still empty.
	SetFeedback(ctx context.Context, id string, fb models.FeedbackEntry) (bool, error)
	// SetSchedule updates scheduled_at of an accepted session.
	SetSchedule(ctx context.Context, id string, at time.Time) (bool, error)
	ListByParticipant(ctx context.Context, userID string, status models.SessionStatus) ([]models.Session, error)
}

// MessageStore is the append-only chat history.
type MessageStore interface {
	// AppendMessage fails with ErrChatBlocked once the owning session is closed.
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessagesBySession(ctx context.Context, sessionID string) ([]models.Message, error)
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) error
	ListReportsBySession(ctx context.Context, sessionID string) ([]models.Report, error)
}

// LinkStore keeps Telegram chat bindings and the short-lived codes used to create them.
type LinkStore interface {
	SaveTelegramLink(ctx context.Context, link *models.TelegramLink) error
	GetTelegramLinkByChat(ctx context.Context, chatID int64) (*models.TelegramLink, error)
	DeleteTelegramLink(ctx context.Context, userID string) error
	ListTelegramLinks(ctx context.Context) ([]models.TelegramLink, error)
	SaveLinkCode(ctx context.Context, code, userID string, ttl time.Duration) error
	ConsumeLinkCode(ctx context.Context, code string) (string, error)
}

type RatingReader interface {
	AverageRating(ctx context.Context, userID string) (Rating, error)
}

type Storage interface {
	SessionStore
	MessageStore
	ReportStore
	LinkStore
	RatingReader
}

var (
	ErrLinkNotFound     = errors.New("telegram link not found")
	ErrLinkCodeNotFound = errors.New("link code not found or expired")
	ErrRedisDisabled    = errors.New("redis is not configured")
)

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil when Redis is not configured.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates the schema from the gorm models. Production databases
// are migrated with Migrate instead; this is used for SQLite in tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.Message{},
		&models.Report{},
		&models.TelegramLink{},
	)
}

// validID reports whether id can be a row key. Postgres rejects malformed
// UUIDs with a syntax error instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// unavailable wraps an I/O failure so callers can match ErrStoreUnavailable
// while the underlying cause stays inspectable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
