package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// JoinQueue escrows the wager and pairs the player if an equal wager is waiting.
func JoinQueue(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID    int64            `json:"playerId"`
			WagerAmount *decimal.Decimal `json:"wagerAmount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "wagerAmount is required")
			return
		}
		id, ok := requireSelf(c, req.PlayerID)
		if !ok {
			return
		}

		res, err := mm.Join(c.Request.Context(), id, *req.WagerAmount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// JoinSpecific pairs the player with a chosen queued opponent.
func JoinSpecific(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID       int64 `json:"playerId"`
			TargetPlayerID int64 `json:"targetPlayerId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "targetPlayerId is required")
			return
		}
		id, ok := requireSelf(c, req.PlayerID)
		if !ok {
			return
		}

		res, err := mm.JoinSpecific(c.Request.Context(), id, req.TargetPlayerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// LeaveQueue removes the player from the queue and refunds the escrow.
func LeaveQueue(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID int64 `json:"playerId"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
		}
		id, ok := requireSelf(c, req.PlayerID)
		if !ok {
			return
		}

		res, err := mm.Leave(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// QueueStatus reports whether the player is queued, matched or idle.
func QueueStatus(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		res, err := mm.Status(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
