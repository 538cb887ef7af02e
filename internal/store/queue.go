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
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/database"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/ledger"
	"github.com/silostrike/backend/internal/models"
)

// maxBackstopPairs bounds one PairWaiting run.
const maxBackstopPairs = 100

// errNoPair aborts a pairing transaction without surfacing an error.
var errNoPair = errors.New("no pair claimed")

// QueueStore implements game.QueueStore.
type QueueStore struct {
	db *sqlx.DB
}

// NewQueueStore creates a new queue store
func NewQueueStore(db *sqlx.DB) *QueueStore {
	return &QueueStore{db: db}
}

// Enqueue escrows the wager and inserts the entry in one transaction. The player
// row is locked first, matching the order used by settlement and refunds.
func (s *QueueStore) Enqueue(ctx context.Context, playerID int64, wager decimal.Decimal) error {
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := lockPlayer(ctx, tx, playerID); err != nil {
			return err
		}

		if _, err := ledger.Debit(ctx, tx, playerID, nil, wager, game.EntryEscrow); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO queue_entries (player_id, wager_amount, joined_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (player_id) DO NOTHING`,
			playerID, wager)
		if err != nil {
			if pqCode(err) == pqForeignKeyViolation {
				return game.ErrPlayerNotFound
			}
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return game.ErrAlreadyQueued
		}
		return nil
	})
}

// PairAndCreate claims the caller's entry and the oldest compatible opponent with
// SKIP LOCKED, deletes both and creates the match with its game state. A caller
// whose own row is locked by another pairing transaction gets nil, nil.
func (s *QueueStore) PairAndCreate(ctx context.Context, playerID int64, targetID *int64) (*models.Match, error) {
	var match *models.Match
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var self models.QueueEntry
		err := tx.GetContext(ctx, &self,
			`SELECT `+queueColumns+` FROM queue_entries WHERE player_id = $1 FOR UPDATE SKIP LOCKED`,
			playerID)
		if errors.Is(err, sql.ErrNoRows) {
			return errNoPair
		}
		if err != nil {
			return fmt.Errorf("failed to lock own queue entry: %w", err)
		}

		query := `SELECT ` + queueColumns + ` FROM queue_entries
			WHERE wager_amount = $1 AND player_id <> $2`
		args := []interface{}{self.WagerAmount, playerID}
		if targetID != nil {
			query += ` AND player_id = $3`
			args = append(args, *targetID)
		}
		query += ` ORDER BY joined_at, player_id LIMIT 1 FOR UPDATE SKIP LOCKED`

		var opp models.QueueEntry
		err = tx.GetContext(ctx, &opp, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return errNoPair
		}
		if err != nil {
			return fmt.Errorf("failed to claim opponent: %w", err)
		}

		match, err = createMatch(ctx, tx, self, opp)
		return err
	})
	if errors.Is(err, errNoPair) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}

// PairWaiting pairs the two oldest entries of each wager tier until no tier has
// two claimable entries.
func (s *QueueStore) PairWaiting(ctx context.Context) ([]*models.Match, error) {
	var wagers []decimal.Decimal
	err := s.db.SelectContext(ctx, &wagers,
		`SELECT wager_amount FROM queue_entries GROUP BY wager_amount HAVING COUNT(*) >= 2 ORDER BY wager_amount`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wager tiers: %w", err)
	}

	var created []*models.Match
	for _, w := range wagers {
		for len(created) < maxBackstopPairs {
			m, err := s.pairOldest(ctx, w)
			if err != nil {
				return created, err
			}
			if m == nil {
				break
			}
			created = append(created, m)
		}
	}
	return created, nil
}

func (s *QueueStore) pairOldest(ctx context.Context, wager decimal.Decimal) (*models.Match, error) {
	var match *models.Match
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var entries []models.QueueEntry
		err := tx.SelectContext(ctx, &entries,
			`SELECT `+queueColumns+` FROM queue_entries
			 WHERE wager_amount = $1
			 ORDER BY joined_at, player_id
			 LIMIT 2
			 FOR UPDATE SKIP LOCKED`, wager)
		if err != nil {
			return fmt.Errorf("failed to claim waiting entries: %w", err)
		}
		if len(entries) < 2 {
			return errNoPair
		}
		match, err = createMatch(ctx, tx, entries[0], entries[1])
		return err
	})
	if errors.Is(err, errNoPair) {
		return nil, nil
	}
	return match, err
}

// createMatch deletes both locked entries and inserts the match and its game
// state. The earlier joiner becomes player 1.
func createMatch(ctx context.Context, tx *sqlx.Tx, a, b models.QueueEntry) (*models.Match, error) {
	if b.JoinedAt.Before(a.JoinedAt) || (b.JoinedAt.Equal(a.JoinedAt) && b.PlayerID < a.PlayerID) {
		a, b = b, a
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE player_id IN ($1, $2)`, a.PlayerID, b.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove paired entries: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		return nil, errNoPair
	}

	var m models.Match
	err = tx.GetContext(ctx, &m,
		`INSERT INTO matches (id, player1_id, player2_id, wager_amount, status, created_at, started_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING `+matchColumns,
		uuid.New().String(), a.PlayerID, b.PlayerID, a.WagerAmount, game.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_states (match_id, created_at, updated_at) VALUES ($1, NOW(), NOW())`, m.ID); err != nil {
		return nil, fmt.Errorf("failed to create game state: %w", err)
	}

	log.WithFields(log.Fields{
		"match_id": m.ID,
		"player1":  a.PlayerID,
		"player2":  b.PlayerID,
	}).Debug("paired queue entries")
	return &m, nil
}

// GetEntry returns nil, nil when the player is not queued.
func (s *QueueStore) GetEntry(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := s.db.GetContext(ctx, &e, `SELECT `+queueColumns+` FROM queue_entries WHERE player_id = $1`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &e, nil
}

// Dequeue removes the entry and refunds the escrow. Returns nil, nil if the row is
// already gone, typically because pairing claimed it first.
func (s *QueueStore) Dequeue(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	return s.removeAndRefund(ctx, playerID, nil, game.EntryQueueRefund)
}

// ListStale returns entries that joined before cutoff.
func (s *QueueStore) ListStale(ctx context.Context, cutoff time.Time) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}
	err := s.db.SelectContext(ctx, &entries,
		`SELECT `+queueColumns+` FROM queue_entries WHERE joined_at < $1 ORDER BY joined_at LIMIT 500`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale entries: %w", err)
	}
	return entries, nil
}

// ExpireEntry removes and refunds the entry only if it still predates cutoff.
func (s *QueueStore) ExpireEntry(ctx context.Context, playerID int64, cutoff time.Time) (*models.QueueEntry, error) {
	return s.removeAndRefund(ctx, playerID, &cutoff, game.EntryStaleRefund)
}

func (s *QueueStore) removeAndRefund(ctx context.Context, playerID int64, cutoff *time.Time, entryType string) (*models.QueueEntry, error) {
	var removed *models.QueueEntry
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := lockPlayer(ctx, tx, playerID); err != nil {
			if errors.Is(err, game.ErrPlayerNotFound) {
				return nil
			}
			return err
		}

		query := `DELETE FROM queue_entries WHERE player_id = $1`
		args := []interface{}{playerID}
		if cutoff != nil {
			query += ` AND joined_at < $2`
			args = append(args, *cutoff)
		}
		query += ` RETURNING ` + queueColumns

		var e models.QueueEntry
		err := tx.GetContext(ctx, &e, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to remove queue entry: %w", err)
		}

		if _, err := ledger.Credit(ctx, tx, playerID, nil, e.WagerAmount, entryType); err != nil {
			return err
		}
		removed = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func lockPlayer(ctx context.Context, tx *sqlx.Tx, playerID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM players WHERE id = $1 FOR NO KEY UPDATE`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return game.ErrPlayerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock player %d: %w", playerID, err)
	}
	return nil
}
