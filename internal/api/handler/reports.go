package handler

import (
	"errors"
	"net/http"
	"skillsetu/backend/internal/report"

	"github.com/gin-gonic/gin"
)

type fileReportBody struct {
	// Session is the field name the web client sends; SessionID is accepted too.
	Session       string `json:"session" form:"session"`
	SessionID     string `json:"sessionId" form:"sessionId"`
	Reason        string `json:"reason" form:"reason"`
	Description   string `json:"description" form:"description"`
	AttachmentRef string `json:"attachmentRef" form:"attachmentRef"`
}

func (h *Handler) FileReport(c *gin.Context) {
	var body fileReportBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = body.Session
	}
	if sessionID == "" {
		badRequest(c, errors.New("session is required"))
		return
	}

	id, err := h.reports.FileReport(c.Request.Context(), callerID(c), sessionID, report.Input{
		Reason:        body.Reason,
		Description:   body.Description,
		AttachmentRef: body.AttachmentRef,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report_id": id})
}
