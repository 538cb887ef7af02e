package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/silostrike/backend/internal/game"
	log "github.com/sirupsen/logrus"
)

// SubmitTurn records the player's blind moves for the current turn.
func SubmitTurn(turns Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID  string `json:"matchId" binding:"required"`
			PlayerID int64  `json:"playerId"`
			Defenses []int  `json:"defenses"`
			Attacks  []int  `json:"attacks"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "matchId is required")
			return
		}
		id, ok := requireSelf(c, req.PlayerID)
		if !ok {
			return
		}

		res, err := turns.SubmitTurn(c.Request.Context(), game.SubmitTurnRequest{
			MatchID:  req.MatchID,
			PlayerID: id,
			Defenses: req.Defenses,
			Attacks:  req.Attacks,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GetGameState returns the match as seen by the caller.
func GetGameState(turns Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		view, err := turns.State(c.Request.Context(), c.Param("matchId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// Heartbeat records that the player is still connected to the match.
func Heartbeat(turns Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID string `json:"matchId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "matchId is required")
			return
		}
		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		if err := turns.Heartbeat(c.Request.Context(), req.MatchID, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// SettleMatch ends a match on request. Admins may name any winner or none for a
// draw. A player naming the opponent resigns; naming themself claims a
// disconnect forfeit.
func SettleMatch(settler Settlement, claims ForfeitClaims, admins AdminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID  string `json:"matchId" binding:"required"`
			WinnerID *int64 `json:"winnerId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "matchId is required")
			return
		}
		ctx := c.Request.Context()

		if adminUser := c.GetString(ctxAdminUsername); adminUser != "" {
			res, err := settler.Settle(ctx, game.SettleRequest{
				MatchID:  req.MatchID,
				WinnerID: req.WinnerID,
				Status:   game.StatusCompleted,
				Reason:   game.ReasonAdmin,
			})
			admins.LogAction(ctx, adminUser, c.ClientIP(), c.FullPath(), "settle_match",
				map[string]interface{}{"matchId": req.MatchID, "winnerId": req.WinnerID}, err == nil)
			if err != nil {
				respondError(c, err)
				return
			}
			log.WithFields(log.Fields{"match_id": req.MatchID, "admin": adminUser, "status": res.Status}).Info("admin settled match")
			c.JSON(http.StatusOK, res)
			return
		}

		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		if req.WinnerID == nil {
			badRequest(c, "winnerId is required")
			return
		}
		res, err := claims.ClaimForfeit(ctx, req.MatchID, id, *req.WinnerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
