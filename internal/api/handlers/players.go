package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetMe returns the authenticated player with recent ledger entries and matches.
func GetMe(players Players, history MatchHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		player, err := players.GetPlayer(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		entries, err := players.Entries(ctx, id, 20)
		if err != nil {
			respondError(c, err)
			return
		}
		matches, err := history.RecentMatches(ctx, id, 10)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"player":        player,
			"ledger":        entries,
			"recentMatches": matches,
		})
	}
}
