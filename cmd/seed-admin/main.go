package main

import (
	"context"
	"os"
	"strings"

	"github.com/silostrike/backend/internal/admin"
	"github.com/silostrike/backend/internal/config"
	"github.com/silostrike/backend/internal/database"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Initialize configuration (loads .env when present)
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
		log.WithField("username", username).Info("using default admin username")
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "change-me-in-production"
		log.Warn("using default admin token, set ADMIN_TOKEN in production")
	}

	displayName := os.Getenv("ADMIN_DISPLAY_NAME")
	if displayName == "" {
		displayName = "Admin"
	}

	roles := []string{"super_admin"}
	if raw := os.Getenv("ADMIN_ROLES"); raw != "" {
		roles = strings.Split(raw, ",")
	}

	if err := admin.CreateAdminAccount(context.Background(), db, username, displayName, adminToken, roles); err != nil {
		log.WithError(err).Fatal("failed to create admin account")
	}

	log.WithFields(log.Fields{
		"username":     username,
		"display_name": displayName,
		"roles":        roles,
	}).Info("admin account created or updated")
}
