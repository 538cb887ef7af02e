package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/silostrike/backend/internal/game"
	log "github.com/sirupsen/logrus"
)

// Context keys set by the auth middlewares.
const (
	ctxPlayerID      = "player_id"
	ctxAdminUsername = "admin_username"
)

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case game.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrMatchNotFound), errors.Is(err, game.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrAlreadyQueued),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrMatchNotActive),
		errors.Is(err, game.ErrOpponentConnected):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// playerID returns the authenticated player set by AuthMiddleware.
func playerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxPlayerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// requireSelf rejects bodies that name a player other than the token's.
func requireSelf(c *gin.Context, bodyPlayerID int64) (int64, bool) {
	id, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	if bodyPlayerID != 0 && bodyPlayerID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "playerId does not match token"})
		return 0, false
	}
	return id, true
}
