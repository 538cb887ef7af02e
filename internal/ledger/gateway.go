package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/database"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/rating"
)

const playerColumns = `id, display_name, wallet_address, is_guest, balance, rating, wins, losses,
	current_streak, longest_streak, created_at, updated_at`

// Gateway is the only writer of player rows. Every mutation is a single
// conditional or incremental statement.
type Gateway struct {
	db *sqlx.DB
}

// NewGateway creates a new player ledger gateway
func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

// GetPlayer returns game.ErrPlayerNotFound for unknown ids.
func (g *Gateway) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var p models.Player
	err := g.db.GetContext(ctx, &p, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", id, err)
	}
	return &p, nil
}

// CreatePlayer registers a guest, or links a wallet. A known wallet address returns
// the existing player.
func (g *Gateway) CreatePlayer(ctx context.Context, displayName string, walletAddress *string) (*models.Player, error) {
	displayName = strings.TrimSpace(displayName)
	if walletAddress != nil {
		addr := strings.TrimSpace(*walletAddress)
		if addr == "" {
			walletAddress = nil
		} else {
			walletAddress = &addr
		}
	}

	var p models.Player
	var err error
	if walletAddress == nil {
		err = g.db.GetContext(ctx, &p,
			`INSERT INTO players (display_name, is_guest, rating) VALUES ($1, TRUE, $2)
			 RETURNING `+playerColumns,
			displayName, rating.Default)
	} else {
		err = g.db.GetContext(ctx, &p,
			`INSERT INTO players (display_name, wallet_address, is_guest, rating) VALUES ($1, $2, FALSE, $3)
			 ON CONFLICT (wallet_address) DO UPDATE
			 SET display_name = CASE WHEN EXCLUDED.display_name = '' THEN players.display_name ELSE EXCLUDED.display_name END,
			     updated_at = NOW()
			 RETURNING `+playerColumns,
			displayName, *walletAddress, rating.Default)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	log.WithFields(log.Fields{
		"player_id": p.ID,
		"guest":     p.IsGuest,
	}).Info("player registered")
	return &p, nil
}

// RecordWin increments wins and the streak, raising the longest streak when passed.
func (g *Gateway) RecordWin(ctx context.Context, id int64) error {
	return g.execOne(ctx, id, `UPDATE players
		SET wins = wins + 1,
		    current_streak = current_streak + 1,
		    longest_streak = GREATEST(longest_streak, current_streak + 1),
		    updated_at = NOW()
		WHERE id = $1`)
}

// RecordLoss increments losses and resets the streak.
func (g *Gateway) RecordLoss(ctx context.Context, id int64) error {
	return g.execOne(ctx, id, `UPDATE players SET losses = losses + 1, current_streak = 0, updated_at = NOW() WHERE id = $1`)
}

// ResetStreak zeroes the current streak.
func (g *Gateway) ResetStreak(ctx context.Context, id int64) error {
	return g.execOne(ctx, id, `UPDATE players SET current_streak = 0, updated_at = NOW() WHERE id = $1`)
}

// ApplyRatingChange adds delta clamped at the rating floor and returns the new rating.
func (g *Gateway) ApplyRatingChange(ctx context.Context, id int64, delta int) (int, error) {
	var r int
	err := g.db.GetContext(ctx, &r,
		`UPDATE players SET rating = GREATEST($1, rating + $2), updated_at = NOW() WHERE id = $3 RETURNING rating`,
		rating.Floor, delta, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, game.ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to apply rating change for player %d: %w", id, err)
	}
	return r, nil
}

// AdminCredit funds a player's balance outside of play.
func (g *Gateway) AdminCredit(ctx context.Context, id int64, amount decimal.Decimal) (*models.Player, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit must be positive", game.ErrInvalidWager)
	}

	err := database.WithTx(ctx, g.db, func(tx *sqlx.Tx) error {
		_, err := Credit(ctx, tx, id, nil, amount, game.EntryAdminCredit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g.GetPlayer(ctx, id)
}

// Entries returns the newest balance movements of a player.
func (g *Gateway) Entries(ctx context.Context, id int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries := []models.LedgerEntry{}
	err := g.db.SelectContext(ctx, &entries,
		`SELECT id, player_id, match_id, entry_type, amount, balance_after, created_at
		 FROM ledger_entries WHERE player_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for player %d: %w", id, err)
	}
	return entries, nil
}

// PlatformFees returns the fee accumulator row.
func (g *Gateway) PlatformFees(ctx context.Context) (*models.PlatformFees, error) {
	var f models.PlatformFees
	if err := g.db.GetContext(ctx, &f, `SELECT accrued, lifetime, updated_at FROM platform_fees WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("failed to read platform fees: %w", err)
	}
	return &f, nil
}

func (g *Gateway) execOne(ctx context.Context, id int64, query string) error {
	res, err := g.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update player %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrPlayerNotFound
	}
	return nil
}
