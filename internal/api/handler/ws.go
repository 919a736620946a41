package handler

import (
	"context"
	"errors"
	"net/http"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/realtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const rejectWriteWait = 5 * time.Second

// ServeChatWebSocket joins the caller to the chat room of ?sessionId=.
// History is replayed as the first frame; rejected joins get one error frame
// and a close.
func (h *Handler) ServeChatWebSocket(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		badRequest(c, errors.New("sessionId is required"))
		return
	}
	userID := callerID(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := realtime.NewWSConn(ws, userID, h.logger)
	conn.OnMessage(func(in realtime.Inbound) {
		if in.Type != models.InboundSendMessage {
			_ = conn.Send(models.EventError, models.ErrorNotice{Code: "unknown_frame", Message: "unsupported frame type"})
			return
		}
		if _, err := h.chat.Send(context.Background(), conn, in.Content, in.Media); err != nil {
			_, code := ErrorCode(err)
			_ = conn.Send(models.EventError, models.ErrorNotice{Code: code, Message: err.Error()})
		}
	})

	if err := h.chat.Join(c.Request.Context(), conn, sessionID); err != nil {
		h.rejectConn(ws, err)
		conn.Close()
		return
	}

	conn.Run()
}

// ServeNotificationsWebSocket streams the caller's lifecycle notifications.
func (h *Handler) ServeNotificationsWebSocket(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := realtime.NewWSConn(ws, callerID(c), h.logger)
	conn.OnMessage(func(realtime.Inbound) {
		_ = conn.Send(models.EventError, models.ErrorNotice{Code: "unknown_frame", Message: "notification channel is receive-only"})
	})
	h.notify.Subscribe(conn)
	conn.Run()
}

func (h *Handler) rejectConn(ws *websocket.Conn, err error) {
	status, code := ErrorCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Chat join failed", zap.Error(err))
	}

	frame, encErr := realtime.EncodeOutbound(models.EventError, models.ErrorNotice{Code: code, Message: err.Error()})
	if encErr == nil {
		ws.SetWriteDeadline(time.Now().Add(rejectWriteWait))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(rejectWriteWait))
	ws.Close()
}
