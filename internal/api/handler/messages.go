package handler

import (
	"net/http"
	"skillsetu/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type postMessageBody struct {
	SessionID string `json:"sessionId" form:"sessionId" binding:"required"`
	Content   string `json:"content" form:"content"`
	Media     string `json:"media" form:"media"`
}

// MessageHistory returns the stored chat of a session in send order.
func (h *Handler) MessageHistory(c *gin.Context) {
	msgs, err := h.chat.History(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]models.ChatMessage, 0, len(msgs))
	for i := range msgs {
		out = append(out, models.NewChatMessage(&msgs[i]))
	}
	c.JSON(http.StatusOK, models.ChatHistory{SessionID: c.Param("id"), Messages: out})
}

// PostMessage sends a chat message without holding a WebSocket open.
func (h *Handler) PostMessage(c *gin.Context) {
	var body postMessageBody
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.chat.Post(c.Request.Context(), body.SessionID, callerID(c), body.Content, body.Media)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewChatMessage(msg))
}
