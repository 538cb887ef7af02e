package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SocketServer is implemented by *ws.Hub.
type SocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, playerID int64, matchID string) error
}

// HandleWebSocket upgrades an authenticated player. Without a matchId the
// socket only receives matched and game over notifications.
func HandleWebSocket(hub SocketServer, turns Turns) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireSelf(c, 0)
		if !ok {
			return
		}
		matchID := c.Param("matchId")
		if matchID != "" {
			// The match must exist.
			if _, err := turns.State(c.Request.Context(), matchID, id); err != nil {
				respondError(c, err)
				return
			}
		}
		if err := hub.Serve(c.Writer, c.Request, id, matchID); err != nil {
			log.WithError(err).WithField("player_id", id).Warn("websocket upgrade failed")
		}
	}
}
