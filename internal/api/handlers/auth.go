package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/silostrike/backend/internal/config"
	log "github.com/sirupsen/logrus"
)

// IssueToken signs a player session token.
func IssueToken(cfg *config.Config, playerID int64, now time.Time) (string, time.Time, error) {
	exp := now.Add(cfg.TokenTTL())
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"player_id": playerID,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// parseToken returns the player id carried by a valid token.
func parseToken(cfg *config.Config, token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	playerIDf, ok := claims["player_id"].(float64)
	if !ok || playerIDf <= 0 {
		return 0, fmt.Errorf("missing player_id")
	}
	return int64(playerIDf), nil
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// AuthMiddleware validates the bearer JWT and sets player_id in context.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted as well.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		id, err := parseToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxPlayerID, id)
		c.Next()
	}
}

// CreatePlayer registers a guest or wallet player and returns a session token.
// Posting an already known wallet address logs that player in again.
func CreatePlayer(players Players, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName   string  `json:"displayName"`
			WalletAddress *string `json:"walletAddress"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request")
				return
			}
		}
		name := strings.TrimSpace(req.DisplayName)
		if len(name) > 32 {
			badRequest(c, "displayName must be at most 32 characters")
			return
		}
		if req.WalletAddress != nil {
			addr := strings.TrimSpace(*req.WalletAddress)
			if addr == "" {
				req.WalletAddress = nil
			} else {
				req.WalletAddress = &addr
			}
		}

		player, err := players.CreatePlayer(c.Request.Context(), name, req.WalletAddress)
		if err != nil {
			respondError(c, err)
			return
		}

		token, exp, err := IssueToken(cfg, player.ID, time.Now())
		if err != nil {
			log.WithError(err).Error("failed to sign token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}

		log.WithField("player_id", player.ID).Info("player session issued")
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": exp.UTC().Format(time.RFC3339),
			"player":    player,
		})
	}
}
