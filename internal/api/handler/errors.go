package handler

import (
	"errors"
	"net/http"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{models.ErrInvalidParticipants, http.StatusBadRequest, "invalid_participants"},
	{models.ErrInvalidSchedule, http.StatusBadRequest, "invalid_schedule"},
	{models.ErrSkillRequired, http.StatusBadRequest, "skill_required"},
	{models.ErrFeedbackRequired, http.StatusBadRequest, "feedback_required"},
	{models.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
	{models.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
	{models.ErrInvalidReportReason, http.StatusBadRequest, "invalid_report_reason"},

	{models.ErrNotAParticipant, http.StatusForbidden, "not_a_participant"},
	{models.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{models.ErrChatBlocked, http.StatusForbidden, "chat_blocked"},

	{models.ErrInvalidSession, http.StatusNotFound, "invalid_session"},
	{models.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},

	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{models.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{models.ErrAlreadyFinalized, http.StatusConflict, "already_finalized"},
	{models.ErrOutcomeConflict, http.StatusConflict, "outcome_conflict"},

	{models.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{storage.ErrRedisDisabled, http.StatusServiceUnavailable, "link_codes_unavailable"},
}

// ErrorCode maps a domain error to its HTTP status and stable error code.
func ErrorCode(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := ErrorCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", callerID(c)),
			zap.Error(err),
		)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": code, "message": message})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
}
