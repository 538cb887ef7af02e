package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/game"
)

// Credit adds amount to a player's balance and journals the movement. ext may be
// the pool or an open transaction; callers that need atomicity with other writes
// pass their tx. Zero amounts are ignored.
func Credit(ctx context.Context, ext sqlx.ExtContext, playerID int64, matchID *string, amount decimal.Decimal, entryType string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("credit amount must not be negative: %s", amount)
	}
	if amount.IsZero() {
		return balanceOf(ctx, ext, playerID)
	}

	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, ext, &balance,
		`UPDATE players SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		amount, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, game.ErrPlayerNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit player %d: %w", playerID, err)
	}

	if err := journal(ctx, ext, playerID, matchID, amount, balance, entryType); err != nil {
		return decimal.Zero, err
	}

	log.WithFields(log.Fields{
		"player_id":     playerID,
		"amount":        amount.String(),
		"entry_type":    entryType,
		"balance_after": balance.String(),
	}).Debug("balance credited")
	return balance, nil
}

// Debit subtracts amount only if the balance covers it. Returns
// game.ErrInsufficientBalance or game.ErrPlayerNotFound otherwise.
func Debit(ctx context.Context, ext sqlx.ExtContext, playerID int64, matchID *string, amount decimal.Decimal, entryType string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("debit amount must not be negative: %s", amount)
	}
	if amount.IsZero() {
		return balanceOf(ctx, ext, playerID)
	}

	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, ext, &balance,
		`UPDATE players SET balance = balance - $1, updated_at = NOW()
		 WHERE id = $2 AND balance >= $1
		 RETURNING balance`,
		amount, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := balanceOf(ctx, ext, playerID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, game.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit player %d: %w", playerID, err)
	}

	if err := journal(ctx, ext, playerID, matchID, amount.Neg(), balance, entryType); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// AccrueFee adds fee to the platform accumulator and returns the new accrued total.
func AccrueFee(ctx context.Context, ext sqlx.ExtContext, fee decimal.Decimal) (decimal.Decimal, error) {
	var accrued decimal.Decimal
	err := sqlx.GetContext(ctx, ext, &accrued,
		`UPDATE platform_fees
		 SET accrued = accrued + $1, lifetime = lifetime + $1, updated_at = NOW()
		 WHERE id = 1
		 RETURNING accrued`, fee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to accrue platform fee: %w", err)
	}
	return accrued, nil
}

func balanceOf(ctx context.Context, ext sqlx.ExtContext, playerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, ext, &balance, `SELECT balance FROM players WHERE id = $1`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, game.ErrPlayerNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance of player %d: %w", playerID, err)
	}
	return balance, nil
}

func journal(ctx context.Context, ext sqlx.ExtContext, playerID int64, matchID *string, amount, balanceAfter decimal.Decimal, entryType string) error {
	_, err := ext.ExecContext(ctx,
		`INSERT INTO ledger_entries (player_id, match_id, entry_type, amount, balance_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		playerID, matchID, entryType, amount, balanceAfter)
	if err != nil {
		return fmt.Errorf("failed to journal %s for player %d: %w", entryType, playerID, err)
	}
	return nil
}
