package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/silostrike/backend/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown username and a wrong token.
var ErrInvalidCredentials = errors.New("invalid admin credentials")

// GetAdminAccount retrieves an admin account by username
func GetAdminAccount(ctx context.Context, db *sqlx.DB, username string) (*models.AdminAccount, error) {
	var admin models.AdminAccount
	err := db.GetContext(ctx, &admin,
		`SELECT username, display_name, token_hash, roles, created_at, updated_at FROM admin_accounts WHERE username = $1`, username)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken)) == nil
}

// CreateAdminAccount creates or replaces an admin account (used for seeding and tests)
func CreateAdminAccount(ctx context.Context, db *sqlx.DB, username, displayName, plainToken string, roles []string) error {
	if username == "" || plainToken == "" {
		return errors.New("username and token are required")
	}
	hashedToken, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO admin_accounts (username, display_name, token_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			updated_at = NOW()
	`, username, displayName, string(hashedToken), pq.Array(roles))
	if err != nil {
		return fmt.Errorf("failed to save admin account: %w", err)
	}
	return nil
}

// ValidateAdmin validates a username and token combination
func ValidateAdmin(ctx context.Context, db *sqlx.DB, username, token string) (*models.AdminAccount, error) {
	admin, err := GetAdminAccount(ctx, db, username)
	if errors.Is(err, sql.ErrNoRows) {
		log.WithField("username", username).Warn("admin login for unknown account")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !VerifyAdminToken(admin.TokenHash, token) {
		log.WithField("username", username).Warn("admin token verification failed")
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(ctx context.Context, db *sqlx.DB, username, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.WithError(err).Warn("failed to marshal admin audit details")
		detailsJSON = []byte("{}")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO admin_audit (admin_username, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, username, ip, route, action, detailsJSON, success)
	if err != nil {
		log.WithError(err).WithField("action", action).Error("failed to log admin action")
	}
	return err
}

// GetAdminAuditLogs retrieves recent admin audit logs with pagination
func GetAdminAuditLogs(ctx context.Context, db *sqlx.DB, limit, offset int) ([]models.AdminAudit, error) {
	logs := []models.AdminAudit{}
	err := db.SelectContext(ctx, &logs, `
		SELECT id, admin_username, ip, route, action, details, success, created_at
		FROM admin_audit
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return logs, err
}

// Service binds the admin helpers to a database for the HTTP layer.
type Service struct {
	db *sqlx.DB
}

// NewService creates a new admin service
func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// ValidateAdmin checks a username and token.
func (s *Service) ValidateAdmin(ctx context.Context, username, token string) (*models.AdminAccount, error) {
	return ValidateAdmin(ctx, s.db, username, token)
}

// LogAction writes an audit row. Failures are logged, not returned.
func (s *Service) LogAction(ctx context.Context, username, ip, route, action string, details map[string]interface{}, success bool) {
	_ = LogAdminAction(ctx, s.db, username, ip, route, action, details, success)
}

// AuditLogs returns recent audit rows.
func (s *Service) AuditLogs(ctx context.Context, limit, offset int) ([]models.AdminAudit, error) {
	return GetAdminAuditLogs(ctx, s.db, limit, offset)
}
