package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/silostrike/backend/internal/config"
	log "github.com/sirupsen/logrus"
)

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"X-Admin-User", "X-Admin-Token", "Accept", "Cache-Control",
			"X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length", "X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}

	corsConfig.AllowOrigins = AllowedOrigins(cfg)
	if len(corsConfig.AllowOrigins) == 0 {
		log.Warn("FRONTEND_URL not set, allowing all origins without credentials")
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowCredentials = true
	}

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"origins":     corsConfig.AllowOrigins,
	}).Info("CORS configured")
	return cors.New(corsConfig)
}

// AllowedOrigins lists the browser origins allowed for HTTP and websocket
// requests. Empty means any origin.
func AllowedOrigins(cfg *config.Config) []string {
	origins := []string{}
	if cfg.Environment == "development" {
		origins = append(origins, "http://localhost:5173", "http://127.0.0.1:5173")
	}
	if cfg.FrontendURL != "" {
		origins = appendUnique(origins, cfg.FrontendURL)
	}
	return origins
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
