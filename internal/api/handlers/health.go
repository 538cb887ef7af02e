package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnStats is satisfied by *ws.Hub.
type ConnStats interface {
	Stats() (clients, rooms int)
}

// HealthCheck returns server health status. Redis is checked through ping.
func HealthCheck(db Pinger, redisPing func(ctx context.Context) error, hub ConnStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if redisPing != nil {
			if err := redisPing(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		body := gin.H{
			"status":  "ok",
			"service": "silostrike-api",
			"version": version,
			"uptime":  time.Since(startTime).String(),
			"checks":  checks,
		}
		if hub != nil {
			clients, rooms := hub.Stats()
			body["websocket"] = gin.H{"clients": clients, "rooms": rooms}
		}

		status := http.StatusOK
		if !healthy {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	}
}
