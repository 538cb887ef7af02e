package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/config"
	log "github.com/sirupsen/logrus"
)

// Admin credential headers.
const (
	headerAdminUser  = "X-Admin-User"
	headerAdminToken = "X-Admin-Token"
)

// authenticateAdmin validates the admin headers. ok is false when they are absent.
func authenticateAdmin(c *gin.Context, admins AdminAuth) (username string, present bool, err error) {
	username = strings.TrimSpace(c.GetHeader(headerAdminUser))
	token := c.GetHeader(headerAdminToken)
	if username == "" && token == "" {
		return "", false, nil
	}
	if _, err := admins.ValidateAdmin(c.Request.Context(), username, token); err != nil {
		admins.LogAction(c.Request.Context(), username, c.ClientIP(), c.FullPath(), "auth", nil, false)
		return "", true, err
	}
	return username, true, nil
}

// AdminAuthMiddleware requires valid admin headers and sets admin_username.
func AdminAuthMiddleware(admins AdminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, present, err := authenticateAdmin(c, admins)
		if !present || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
			return
		}
		c.Set(ctxAdminUsername, username)
		c.Next()
	}
}

// PlayerOrAdmin accepts admin headers or falls back to the player JWT.
func PlayerOrAdmin(cfg *config.Config, admins AdminAuth) gin.HandlerFunc {
	playerAuth := AuthMiddleware(cfg)
	return func(c *gin.Context) {
		username, present, err := authenticateAdmin(c, admins)
		if present {
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
				return
			}
			c.Set(ctxAdminUsername, username)
			c.Next()
			return
		}
		playerAuth(c)
	}
}

// CollectFees runs a fee withdrawal now and lists the latest withdrawals.
func CollectFees(collector FeeCollector, withdrawals Withdrawals, admins AdminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		adminUser := c.GetString(ctxAdminUsername)

		res, err := collector.Collect(ctx)
		admins.LogAction(ctx, adminUser, c.ClientIP(), c.FullPath(), "collect_fees", nil, err == nil)
		if err != nil {
			respondError(c, err)
			return
		}

		list, err := withdrawals.List(ctx, 20)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": res, "withdrawals": list})
	}
}

// CreditPlayer funds a player balance.
func CreditPlayer(players Players, admins AdminAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		adminUser := c.GetString(ctxAdminUsername)

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid player id")
			return
		}
		var req struct {
			Amount *decimal.Decimal `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "amount is required")
			return
		}

		player, err := players.AdminCredit(ctx, id, *req.Amount)
		admins.LogAction(ctx, adminUser, c.ClientIP(), c.FullPath(), "credit_player",
			map[string]interface{}{"playerId": id, "amount": req.Amount.String()}, err == nil)
		if err != nil {
			respondError(c, err)
			return
		}
		log.WithFields(log.Fields{"player_id": id, "amount": req.Amount.String(), "admin": adminUser}).Info("admin credited player")
		c.JSON(http.StatusOK, player)
	}
}
