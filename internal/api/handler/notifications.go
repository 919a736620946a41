package handler

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/http"
	"skillsetu/backend/internal/config"

	"github.com/gin-gonic/gin"
)

var linkCodeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func newLinkCode() (string, error) {
	buf := make([]byte, config.TelegramLinkCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link code: %w", err)
	}
	return linkCodeEncoding.EncodeToString(buf)[:config.TelegramLinkCodeLength], nil
}

// TelegramLink issues a one-time code the user sends to the bot as
// "/start <code>" to bind their chat.
func (h *Handler) TelegramLink(c *gin.Context) {
	code, err := newLinkCode()
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.links.SaveLinkCode(c.Request.Context(), code, callerID(c), config.TelegramLinkCodeTTL); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":       code,
		"expires_in": int(config.TelegramLinkCodeTTL.Seconds()),
	})
}
