// Package lifecycle is the session state machine: request, accept,
// reschedule and the two-sided close-out with feedback.
package lifecycle

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

// Notifier pushes an event to every live connection of a user.
type Notifier interface {
	Publish(ctx context.Context, userID, event string, payload any)
}

// MarkInput is the caller's close-out: the outcome they want and their feedback.
type MarkInput struct {
	Outcome  string
	Rating   int
	Feedback string
}

type Service struct {
	store        storage.SessionStore
	notifier     Notifier
	events       events.Publisher
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewService(
	store storage.SessionStore,
	notifier Notifier,
	pub events.Publisher,
	logger *zap.Logger,
	storeTimeout time.Duration,
) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:        store,
		notifier:     notifier,
		events:       pub,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RequestSession creates a pending session from requester to target.
func (s *Service) RequestSession(ctx context.Context, requester, target, skill string, scheduledAt time.Time) (*models.Session, error) {
	requester = strings.TrimSpace(requester)
	target = strings.TrimSpace(target)
	skill = strings.TrimSpace(skill)

	if requester == "" || target == "" || requester == target {
		return nil, models.ErrInvalidParticipants
	}
	if skill == "" {
		return nil, models.ErrSkillRequired
	}
	if scheduledAt.IsZero() {
		return nil, models.ErrInvalidSchedule
	}

	sess := &models.Session{
		ParticipantA: requester,
		ParticipantB: target,
		Skill:        skill,
		ScheduledAt:  scheduledAt.UTC(),
		Status:       models.StatusPending,
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.CreateSession(sctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("Session requested",
		zap.String("session_id", sess.ID),
		zap.String("requester", requester),
		zap.String("target", target),
	)
	s.notify(ctx, target, models.EventSessionRequested, sess, requester)
	s.emit(ctx, events.NewSessionEvent(events.SessionRequested, sess, requester))
	return sess, nil
}

// AcceptSession moves a pending session to accepted. Only the target may accept.
func (s *Service) AcceptSession(ctx context.Context, actor, sessionID string) (*models.Session, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.load(sctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actor == "" || actor != sess.ParticipantB {
		return nil, models.ErrNotAParticipant
	}
	if sess.Status != models.StatusPending {
		return nil, models.ErrInvalidTransition
	}

	ok, err := s.store.CompareAndSetStatus(sctx, sessionID, models.StatusPending, models.StatusAccepted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvalidTransition
	}
	sess.Status = models.StatusAccepted

	s.logger.Info("Session accepted", zap.String("session_id", sessionID), zap.String("actor", actor))
	s.notify(ctx, sess.ParticipantA, models.EventSessionAccepted, sess, actor)
	s.emit(ctx, events.NewSessionEvent(events.SessionAccepted, sess, actor))
	return sess, nil
}

// RescheduleSession moves the meeting time of an accepted session.
func (s *Service) RescheduleSession(ctx context.Context, actor, sessionID string, scheduledAt time.Time) (*models.Session, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.load(sctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actor) {
		return nil, models.ErrNotAParticipant
	}
	if err := rescheduleAllowed(sess.Status); err != nil {
		return nil, err
	}
	if scheduledAt.IsZero() {
		return nil, models.ErrInvalidSchedule
	}

	ok, err := s.store.SetSchedule(sctx, sessionID, scheduledAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The session left accepted after it was read.
		current, err := s.load(sctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := rescheduleAllowed(current.Status); err != nil {
			return nil, err
		}
		return nil, models.ErrInvalidTransition
	}
	sess.ScheduledAt = scheduledAt.UTC()

	s.logger.Info("Session rescheduled",
		zap.String("session_id", sessionID),
		zap.String("actor", actor),
		zap.Time("scheduled_at", sess.ScheduledAt),
	)
	s.notify(ctx, sess.OtherParticipant(actor), models.EventSessionRescheduled, sess, actor)
	s.emit(ctx, events.NewSessionEvent(events.SessionRescheduled, sess, actor))
	return sess, nil
}

// MarkSession records the actor's outcome and feedback. The first caller on an
// accepted session decides the outcome; the second participant attaches
// feedback with the same outcome.
func (s *Service) MarkSession(ctx context.Context, actor, sessionID string, in MarkInput) (*models.Session, error) {
	outcome, err := models.ParseOutcome(in.Outcome)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.load(sctx, sessionID)
	if err != nil {
		return nil, err
	}
	slot, ok := sess.SlotOf(actor)
	if !ok {
		return nil, models.ErrNotAParticipant
	}
	if sess.Status == models.StatusPending {
		return nil, models.ErrInvalidTransition
	}
	if sess.FeedbackFor(slot).Given() {
		return nil, models.ErrAlreadyFinalized
	}

	text := strings.TrimSpace(in.Feedback)
	if in.Rating < config.MinRating || in.Rating > config.MaxRating || text == "" {
		return nil, models.ErrFeedbackRequired
	}

	submittedAt := s.now()
	entry := models.FeedbackEntry{
		Slot:     slot,
		Feedback: models.Feedback{Rating: in.Rating, Text: text, SubmittedAt: &submittedAt},
	}

	closedNow := false
	if sess.Status == models.StatusAccepted {
		won, err := s.store.CompareAndSetStatus(sctx, sessionID, models.StatusAccepted, outcome, &entry)
		if err != nil {
			return nil, err
		}
		if won {
			closedNow = true
		} else {
			// Another participant closed it first; continue against the terminal state.
			if sess, err = s.load(sctx, sessionID); err != nil {
				return nil, err
			}
		}
	}

	if !closedNow {
		if err := s.attach(sctx, sess, actor, outcome, entry); err != nil {
			return nil, err
		}
	}

	result, err := s.load(sctx, sessionID)
	if err != nil {
		s.logger.Warn("Could not re-read marked session", zap.String("session_id", sessionID), zap.Error(err))
		result = sess
		result.Status = outcome
	}

	s.logger.Info("Session marked",
		zap.String("session_id", sessionID),
		zap.String("actor", actor),
		zap.String("outcome", string(outcome)),
		zap.Bool("closed_now", closedNow),
		zap.Bool("chat_blocked", result.ChatBlocked()),
	)
	s.notify(ctx, result.OtherParticipant(actor), models.EventSessionMarked, result, actor)
	if closedNow {
		s.emit(ctx, events.NewSessionEvent(events.SessionClosed, result, actor))
	}
	s.emit(ctx, events.NewSessionEvent(events.SessionMarked, result, actor))
	return result, nil
}

// attach adds feedback to an already terminal session.
func (s *Service) attach(ctx context.Context, sess *models.Session, actor string, outcome models.SessionStatus, entry models.FeedbackEntry) error {
	if !sess.IsTerminal() {
		return models.ErrInvalidTransition
	}
	if sess.Status != outcome {
		return models.ErrOutcomeConflict
	}
	if sess.FeedbackGivenBy(actor) {
		return models.ErrAlreadyFinalized
	}

	ok, err := s.store.SetFeedback(ctx, sess.ID, entry)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Lost a race with a concurrent call from the same actor.
	current, err := s.load(ctx, sess.ID)
	if err != nil {
		return err
	}
	if current.FeedbackGivenBy(actor) {
		return models.ErrAlreadyFinalized
	}
	return models.ErrInvalidTransition
}

func (s *Service) GetSession(ctx context.Context, actor, sessionID string) (*models.Session, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.store.GetSession(sctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actor) {
		return nil, models.ErrNotAParticipant
	}
	return sess, nil
}

func (s *Service) GetPending(ctx context.Context, user string) ([]models.Session, error) {
	return s.list(ctx, user, models.StatusPending)
}

func (s *Service) GetAccepted(ctx context.Context, user string) ([]models.Session, error) {
	return s.list(ctx, user, models.StatusAccepted)
}

func (s *Service) GetCompleted(ctx context.Context, user string) ([]models.Session, error) {
	return s.list(ctx, user, models.StatusCompleted)
}

func (s *Service) GetCanceled(ctx context.Context, user string) ([]models.Session, error) {
	return s.list(ctx, user, models.StatusCanceled)
}

func (s *Service) list(ctx context.Context, user string, status models.SessionStatus) ([]models.Session, error) {
	if strings.TrimSpace(user) == "" {
		return nil, models.ErrInvalidParticipants
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListByParticipant(sctx, user, status)
}

// load reads a session, reporting a missing one as ErrInvalidSession.
func (s *Service) load(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, models.ErrInvalidSession
	}
	return sess, err
}

func rescheduleAllowed(status models.SessionStatus) error {
	switch {
	case status.IsTerminal():
		return models.ErrSessionClosed
	case status != models.StatusAccepted:
		return models.ErrInvalidTransition
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID, event string, sess *models.Session, actor string) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Publish(ctx, userID, event, models.NewSessionNotice(sess, actor))
}

// emit publishes to the event outbox. Failures are logged only.
func (s *Service) emit(ctx context.Context, e events.Event) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.events.Publish(sctx, e); err != nil {
		s.logger.Warn("Failed to publish domain event",
			zap.String("type", string(e.Type)),
			zap.String("session_id", e.SessionID),
			zap.Error(err),
		)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
