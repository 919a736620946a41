package handler

import (
	"context"
	"net/http"
	"skillsetu/backend/internal/lifecycle"
	"skillsetu/backend/internal/models"
	"time"

	"github.com/gin-gonic/gin"
)

type requestSessionBody struct {
	TargetID    string `json:"userId2" form:"userId2" binding:"required"`
	Skill       string `json:"skill" form:"skill"`
	SessionDate string `json:"sessionDate" form:"sessionDate"`
	SessionTime string `json:"sessionTime" form:"sessionTime"`
	// ScheduledAt is an RFC 3339 alternative to the date and time pair.
	ScheduledAt string `json:"scheduledAt" form:"scheduledAt"`
}

type sessionIDBody struct {
	SessionID string `json:"sessionId" form:"sessionId" binding:"required"`
}

type rescheduleBody struct {
	SessionID string `json:"sessionId" form:"sessionId" binding:"required"`
	Date      string `json:"newMeetingDate" form:"newMeetingDate"`
	Time      string `json:"newMeetingTime" form:"newMeetingTime"`
}

type markSessionBody struct {
	SessionID string `json:"sessionId" form:"sessionId" binding:"required"`
	Status    string `json:"status" form:"status" binding:"required"`
	Rating    int    `json:"rating" form:"rating"`
	Feedback  string `json:"feedback" form:"feedback"`
}

func parseScheduleFields(date, clock, rfc3339 string) (time.Time, error) {
	if rfc3339 != "" {
		return models.ParseSchedule(rfc3339, "", time.UTC)
	}
	return models.ParseSchedule(date, clock, time.UTC)
}

func (h *Handler) RequestSession(c *gin.Context) {
	var body requestSessionBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	at, err := parseScheduleFields(body.SessionDate, body.SessionTime, body.ScheduledAt)
	if err != nil {
		h.writeError(c, err)
		return
	}

	sess, err := h.sessions.RequestSession(c.Request.Context(), callerID(c), body.TargetID, body.Skill, at)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) AcceptSession(c *gin.Context) {
	var body sessionIDBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	sess, err := h.sessions.AcceptSession(c.Request.Context(), callerID(c), body.SessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) RescheduleSession(c *gin.Context) {
	var body rescheduleBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	at, err := models.ParseSchedule(body.Date, body.Time, time.UTC)
	if err != nil {
		h.writeError(c, err)
		return
	}

	sess, err := h.sessions.RescheduleSession(c.Request.Context(), callerID(c), body.SessionID, at)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) MarkSession(c *gin.Context) {
	var body markSessionBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	sess, err := h.sessions.MarkSession(c.Request.Context(), callerID(c), body.SessionID, lifecycle.MarkInput{
		Outcome:  body.Status,
		Rating:   body.Rating,
		Feedback: body.Feedback,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.GetSession(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ListSessions adapts one of the per-status projections to a handler.
func (h *Handler) ListSessions(list func(ctx context.Context, user string) ([]models.Session, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := list(c.Request.Context(), callerID(c))
		if err != nil {
			h.writeError(c, err)
			return
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		c.JSON(http.StatusOK, sessions)
	}
}

func (h *Handler) Rating(c *gin.Context) {
	rating, err := h.ratings.AverageRating(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}
