package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/database"
	"github.com/silostrike/backend/internal/models"
)

// Withdrawal statuses.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalPaid       = "paid"
	WithdrawalFailed     = "failed"
)

const withdrawalColumns = `id, amount, destination, status, attempts, last_error, reference, created_at, updated_at`

// WithdrawalStore persists fee withdrawals and moves accrued fees into them.
type WithdrawalStore struct {
	db *sqlx.DB
}

// NewWithdrawalStore creates a new withdrawal store
func NewWithdrawalStore(db *sqlx.DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

// Reserve moves the whole accrued balance into a new pending withdrawal when it
// reaches threshold. Returns nil, nil below the threshold.
func (s *WithdrawalStore) Reserve(ctx context.Context, destination string, threshold decimal.Decimal) (*models.FeeWithdrawal, error) {
	var w *models.FeeWithdrawal
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var accrued decimal.Decimal
		if err := tx.GetContext(ctx, &accrued,
			`SELECT accrued FROM platform_fees WHERE id = 1 FOR UPDATE`); err != nil {
			return fmt.Errorf("failed to lock platform fees: %w", err)
		}
		if !accrued.IsPositive() || accrued.LessThan(threshold) {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE platform_fees SET accrued = accrued - $1, updated_at = NOW() WHERE id = 1`, accrued); err != nil {
			return fmt.Errorf("failed to reserve accrued fees: %w", err)
		}

		var created models.FeeWithdrawal
		if err := tx.GetContext(ctx, &created,
			`INSERT INTO fee_withdrawals (id, amount, destination, status, attempts, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
			 RETURNING `+withdrawalColumns,
			uuid.New().String(), accrued, destination, WithdrawalPending); err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}
		w = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ClaimPending moves up to limit pending withdrawals to processing and counts the attempt.
func (s *WithdrawalStore) ClaimPending(ctx context.Context, limit int) ([]models.FeeWithdrawal, error) {
	claimed := []models.FeeWithdrawal{}
	err := s.db.SelectContext(ctx, &claimed,
		`UPDATE fee_withdrawals
		 SET status = $1, attempts = attempts + 1, updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM fee_withdrawals
			WHERE status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+withdrawalColumns,
		WithdrawalProcessing, WithdrawalPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim withdrawals: %w", err)
	}
	return claimed, nil
}

// MarkPaid records a successful payout.
func (s *WithdrawalStore) MarkPaid(ctx context.Context, id, reference string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fee_withdrawals SET status = $1, reference = $2, last_error = NULL, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		WithdrawalPaid, reference, id, WithdrawalProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("withdrawal %s is not processing", id)
	}
	return nil
}

// MarkFailed returns the withdrawal to pending, or fails it for good once
// maxAttempts is reached. A permanently failed amount goes back to the accrued
// balance so a later withdrawal picks it up. Returns the resulting status.
func (s *WithdrawalStore) MarkFailed(ctx context.Context, id, reason string, maxAttempts int) (string, error) {
	var status string
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var row struct {
			Status string          `db:"status"`
			Amount decimal.Decimal `db:"amount"`
		}
		err := tx.GetContext(ctx, &row,
			`UPDATE fee_withdrawals
			 SET status = CASE WHEN attempts >= $1 THEN $2 ELSE $3 END,
			     last_error = $4, updated_at = NOW()
			 WHERE id = $5 AND status = $6
			 RETURNING status, amount`,
			maxAttempts, WithdrawalFailed, WithdrawalPending, reason, id, WithdrawalProcessing)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("withdrawal %s is not processing", id)
		}
		if err != nil {
			return fmt.Errorf("failed to mark withdrawal failed: %w", err)
		}
		status = row.Status

		if status == WithdrawalFailed {
			if _, err := tx.ExecContext(ctx,
				`UPDATE platform_fees SET accrued = accrued + $1, updated_at = NOW() WHERE id = 1`, row.Amount); err != nil {
				return fmt.Errorf("failed to restore accrued fees: %w", err)
			}
		}
		return nil
	})
	return status, err
}

// RequeueStuck returns processing withdrawals untouched since before cutoff to pending.
func (s *WithdrawalStore) RequeueStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fee_withdrawals SET status = $1, updated_at = NOW() WHERE status = $2 AND updated_at < $3`,
		WithdrawalPending, WithdrawalProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck withdrawals: %w", err)
	}
	return res.RowsAffected()
}

// List returns the newest withdrawals.
func (s *WithdrawalStore) List(ctx context.Context, limit int) ([]models.FeeWithdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []models.FeeWithdrawal{}
	if err := s.db.SelectContext(ctx, &out,
		`SELECT `+withdrawalColumns+` FROM fee_withdrawals ORDER BY created_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return out, nil
}
