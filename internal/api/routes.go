package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/silostrike/backend/internal/api/handlers"
	"github.com/silostrike/backend/internal/config"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the services the routes are built from.
type Dependencies struct {
	Config      *config.Config
	Players     handlers.Players
	History     handlers.MatchHistory
	Matchmaking handlers.Matchmaking
	Turns       handlers.Turns
	Settlement  handlers.Settlement
	Forfeits    handlers.ForfeitClaims
	Collector   handlers.FeeCollector
	Withdrawals handlers.Withdrawals
	Admins      handlers.AdminAuth
	Hub         interface {
		handlers.SocketServer
		handlers.ConnStats
	}
	DB        handlers.Pinger
	RedisPing func(ctx context.Context) error
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Dependencies) {
	cfg := d.Config

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Next()
		})
		log.Debug("no-cache headers enabled for all routes")
	}

	auth := handlers.AuthMiddleware(cfg)
	adminOnly := handlers.AdminAuthMiddleware(d.Admins)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.DB, d.RedisPing, d.Hub))

		v1.POST("/players", handlers.CreatePlayer(d.Players, cfg))
		v1.GET("/players/me", auth, handlers.GetMe(d.Players, d.History))

		mm := v1.Group("/matchmaking", auth)
		{
			mm.POST("/join", handlers.JoinQueue(d.Matchmaking))
			mm.POST("/leave", handlers.LeaveQueue(d.Matchmaking))
			mm.POST("/joinSpecific", handlers.JoinSpecific(d.Matchmaking))
			mm.GET("/status", handlers.QueueStatus(d.Matchmaking))
		}

		g := v1.Group("/game", auth)
		{
			g.POST("/submitTurn", handlers.SubmitTurn(d.Turns))
			g.GET("/state/:matchId", handlers.GetGameState(d.Turns))
			g.POST("/heartbeat", handlers.Heartbeat(d.Turns))
			g.GET("/:matchId/ws", handlers.HandleWebSocket(d.Hub, d.Turns))
		}
		v1.GET("/ws", auth, handlers.HandleWebSocket(d.Hub, d.Turns))

		v1.POST("/match/settle", handlers.PlayerOrAdmin(cfg, d.Admins), handlers.SettleMatch(d.Settlement, d.Forfeits, d.Admins))
		v1.POST("/fees/collect", adminOnly, handlers.CollectFees(d.Collector, d.Withdrawals, d.Admins))

		adm := v1.Group("/admin", adminOnly)
		{
			adm.POST("/players/:id/credit", handlers.CreditPlayer(d.Players, d.Admins))
		}
	}
}
