// Package handler exposes the session, chat, report and notification
// operations over HTTP and WebSocket.
package handler

import (
	"net/http"
	"skillsetu/backend/internal/chathub"
	"skillsetu/backend/internal/lifecycle"
	"skillsetu/backend/internal/notify"
	"skillsetu/backend/internal/report"
	"skillsetu/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps are the services the handlers delegate to.
type Deps struct {
	Sessions  *lifecycle.Service
	Chat      *chathub.Manager
	Notify    *notify.Hub
	Reports   *report.Service
	Links     storage.LinkStore
	Ratings   storage.RatingReader
	JWTSecret []byte
	Logger    *zap.Logger
}

type Handler struct {
	sessions  *lifecycle.Service
	chat      *chathub.Manager
	notify    *notify.Hub
	reports   *report.Service
	links     storage.LinkStore
	ratings   storage.RatingReader
	jwtSecret []byte
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		sessions:  d.Sessions,
		chat:      d.Chat,
		notify:    d.Notify,
		reports:   d.Reports,
		links:     d.Links,
		ratings:   d.Ratings,
		jwtSecret: d.JWTSecret,
		logger:    d.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api", h.RequireAuth())
	{
		sessions := api.Group("/sessions")
		sessions.POST("/request", h.RequestSession)
		sessions.POST("/accept", h.AcceptSession)
		sessions.POST("/schedule", h.RescheduleSession)
		sessions.POST("/mark-session", h.MarkSession)
		sessions.GET("/pending", h.ListSessions(h.sessions.GetPending))
		sessions.GET("/accepted", h.ListSessions(h.sessions.GetAccepted))
		sessions.GET("/acceptedOnly", h.ListSessions(h.sessions.GetAccepted))
		sessions.GET("/completed", h.ListSessions(h.sessions.GetCompleted))
		sessions.GET("/canceled", h.ListSessions(h.sessions.GetCanceled))
		sessions.GET("/message/:id", h.MessageHistory)
		sessions.POST("/message", h.PostMessage)
		sessions.GET("/ratings/:userId", h.Rating)
		sessions.GET("/:id", h.GetSession)

		api.POST("/reports", h.FileReport)
		api.POST("/notifications/telegram-link", h.TelegramLink)
	}

	ws := r.Group("/ws", h.RequireAuth())
	{
		ws.GET("/sessions", h.ServeChatWebSocket)
		ws.GET("/notifications", h.ServeNotificationsWebSocket)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
