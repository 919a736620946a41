package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer  = "skillsetu-service"
	userIDKey    = "user_id"
	authHeader   = "Authorization"
	legacyHeader = "x-auth-token"
)

var errMissingToken = errors.New("authorization token missing")

// IssueToken signs an HS256 token carrying userID. Identity is issued by an
// external service in production; this is used by the admin CLI and tests.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		userIDKey: userID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iss":     tokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies the token and returns its user_id claim.
func ParseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	userID, _ := claims[userIDKey].(string)
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token has no user_id claim")
	}
	return userID, nil
}

// tokenFromRequest accepts "Authorization: Bearer", the x-auth-token header
// used by the web client, and a token query parameter for WebSocket upgrades.
func tokenFromRequest(c *gin.Context) (string, error) {
	if h := c.GetHeader(authHeader); h != "" {
		if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
			return "", errMissingToken
		}
		return strings.TrimSpace(h[7:]), nil
	}
	if t := c.GetHeader(legacyHeader); t != "" {
		return t, nil
	}
	if t := c.Query("token"); t != "" {
		return t, nil
	}
	return "", errMissingToken
}

// RequireAuth rejects requests without a valid token and stores the caller id.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": err.Error()})
			return
		}

		userID, err := ParseToken(h.jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "invalid token or expired"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
