package models

import "errors"

// Lifecycle errors.
var (
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrNotAParticipant     = errors.New("not a participant of this session")
	ErrInvalidTransition   = errors.New("invalid session status transition")
	ErrSessionClosed       = errors.New("session is closed")
	ErrAlreadyFinalized    = errors.New("feedback already submitted")
	ErrFeedbackRequired    = errors.New("rating (1-5) and feedback text are required")
	ErrOutcomeConflict     = errors.New("session was already closed with a different outcome")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrSkillRequired       = errors.New("skill is required")
)

// Chat and report errors.
var (
	ErrUnauthorized        = errors.New("not allowed to use this session chat")
	ErrChatBlocked         = errors.New("chat is closed for this session")
	ErrEmptyMessage        = errors.New("message has no content")
	ErrMessageTooLong      = errors.New("message is too long")
	ErrInvalidSession      = errors.New("invalid session")
	ErrInvalidReportReason = errors.New("invalid report reason")
)

// Store errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)
