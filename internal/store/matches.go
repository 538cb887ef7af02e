package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/database"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/ledger"
	"github.com/silostrike/backend/internal/models"
)

// sweepBatch bounds the rows one sweep pass loads.
const sweepBatch = 100

// errNotApplied rolls back a finalization whose guard no longer holds.
var errNotApplied = errors.New("finalization not applied")

// MatchStore implements game.MatchStore.
type MatchStore struct {
	db *sqlx.DB
}

// NewMatchStore creates a new match store
func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

// GetMatch returns game.ErrMatchNotFound for unknown or malformed ids.
func (s *MatchStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, game.ErrMatchNotFound
	}
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &m, nil
}

// GetGameState returns game.ErrMatchNotFound for unknown or malformed ids.
func (s *MatchStore) GetGameState(ctx context.Context, matchID string) (*models.GameState, error) {
	if _, err := uuid.Parse(matchID); err != nil {
		return nil, game.ErrMatchNotFound
	}
	var gs models.GameState
	err := s.db.GetContext(ctx, &gs, `SELECT `+stateColumns+` FROM game_states WHERE match_id = $1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	return &gs, nil
}

// LatestActiveMatch returns the newest unfinished match of a player, or nil, nil.
func (s *MatchStore) LatestActiveMatch(ctx context.Context, playerID int64) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m,
		`SELECT `+matchColumns+` FROM matches
		 WHERE (player1_id = $1 OR player2_id = $1) AND status IN ('waiting', 'active')
		 ORDER BY created_at DESC LIMIT 1`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active match: %w", err)
	}
	return &m, nil
}

// RecentMatches returns the newest matches a player took part in.
func (s *MatchStore) RecentMatches(ctx context.Context, playerID int64, limit int) ([]models.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	matches := []models.Match{}
	err := s.db.SelectContext(ctx, &matches,
		`SELECT `+matchColumns+` FROM matches
		 WHERE player1_id = $1 OR player2_id = $1
		 ORDER BY created_at DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

// SubmitMoves records one slot's moves if that slot has not submitted for turn yet.
// The first submission of a turn stamps turn_started_at.
func (s *MatchStore) SubmitMoves(ctx context.Context, matchID string, turn, slot int, moves game.Moves, now time.Time) (*models.GameState, error) {
	self, other := "p1", "p2"
	if slot == 2 {
		self, other = "p2", "p1"
	} else if slot != 1 {
		return nil, fmt.Errorf("invalid slot %d", slot)
	}

	query := fmt.Sprintf(`UPDATE game_states SET
			%[1]s_defenses = $1,
			%[1]s_attacks = $2,
			%[1]s_ready = TRUE,
			turn_started_at = CASE WHEN %[2]s_ready THEN turn_started_at ELSE $3 END,
			updated_at = $3
		WHERE match_id = $4 AND current_turn = $5 AND phase = 'planning' AND NOT %[1]s_ready
		RETURNING %[3]s`, self, other, stateColumns)

	var gs models.GameState
	err := s.db.GetContext(ctx, &gs, query,
		pq.Int64Array(toInt64s(moves.Defenses)), pq.Int64Array(toInt64s(moves.Attacks)), now, matchID, turn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record moves: %w", err)
	}
	return &gs, nil
}

// CommitResolution writes the resolved silos if the row is still at turn with both
// players ready. A continuing game advances the turn and clears the ready flags; a
// terminal one moves to game_over.
func (s *MatchStore) CommitResolution(ctx context.Context, matchID string, turn int, res game.Resolution, winnerID *int64, now time.Time) (bool, error) {
	var query string
	var args []interface{}
	if res.Outcome.Terminal() {
		query = `UPDATE game_states SET
				p1_silos = $1, p2_silos = $2,
				phase = 'game_over', winner_id = $3,
				turn_resolved_at = $4, updated_at = $4
			WHERE match_id = $5 AND current_turn = $6 AND phase = 'planning' AND p1_ready AND p2_ready`
		args = []interface{}{pq.Int64Array(res.P1Silos), pq.Int64Array(res.P2Silos), winnerID, now, matchID, turn}
	} else {
		query = `UPDATE game_states SET
				p1_silos = $1, p2_silos = $2,
				current_turn = current_turn + 1,
				p1_ready = FALSE, p2_ready = FALSE,
				turn_started_at = NULL,
				turn_resolved_at = $3, updated_at = $3
			WHERE match_id = $4 AND current_turn = $5 AND phase = 'planning' AND p1_ready AND p2_ready`
		args = []interface{}{pq.Int64Array(res.P1Silos), pq.Int64Array(res.P2Silos), now, matchID, turn}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to commit resolution: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Finalize ends the match and moves funds in one transaction. Lock order is
// game_states, matches, players.
func (s *MatchStore) Finalize(ctx context.Context, f game.Finalization) (*game.FinalizeResult, error) {
	result := &game.FinalizeResult{}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var gs models.GameState
		err := tx.GetContext(ctx, &gs,
			`SELECT `+stateColumns+` FROM game_states WHERE match_id = $1 FOR UPDATE`, f.MatchID)
		if errors.Is(err, sql.ErrNoRows) {
			return game.ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock game state: %w", err)
		}
		if !guardHolds(&gs, f) {
			return errNotApplied
		}

		var players struct {
			Player1ID int64 `db:"player1_id"`
			Player2ID int64 `db:"player2_id"`
		}
		err = tx.GetContext(ctx, &players,
			`UPDATE matches
			 SET status = $1, winner_id = $2, forfeit_reason = $3, forfeited_by = $4, ended_at = $5
			 WHERE id = $6 AND status IN ('waiting', 'active')
			 RETURNING player1_id, player2_id`,
			f.Status, f.WinnerID, nullIfEmpty(f.Reason), f.ForfeitedBy, f.Now, f.MatchID)
		if errors.Is(err, sql.ErrNoRows) {
			return errNotApplied
		}
		if err != nil {
			return fmt.Errorf("failed to finalize match: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE game_states SET phase = 'game_over', winner_id = $1, updated_at = $2 WHERE match_id = $3`,
			f.WinnerID, f.Now, f.MatchID); err != nil {
			return fmt.Errorf("failed to close game state: %w", err)
		}

		matchID := f.MatchID
		for _, c := range f.Credits {
			if _, err := ledger.Credit(ctx, tx, c.PlayerID, &matchID, c.Amount, c.EntryType); err != nil {
				return err
			}
		}

		if f.Fee.IsPositive() {
			accrued, err := ledger.AccrueFee(ctx, tx, f.Fee)
			if err != nil {
				return err
			}
			result.FeeAccrued = accrued
		}

		var residual []models.QueueEntry
		err = tx.SelectContext(ctx, &residual,
			`DELETE FROM queue_entries WHERE player_id IN ($1, $2) RETURNING `+queueColumns,
			players.Player1ID, players.Player2ID)
		if err != nil {
			return fmt.Errorf("failed to clear residual queue entries: %w", err)
		}
		for _, q := range residual {
			if _, err := ledger.Credit(ctx, tx, q.PlayerID, nil, q.WagerAmount, game.EntryQueueRefund); err != nil {
				return err
			}
		}
		result.QueueRefunds = residual
		result.Applied = true
		return nil
	})

	switch {
	case errors.Is(err, errNotApplied):
		return &game.FinalizeResult{}, nil
	case pqCode(err) == pqUniqueViolation:
		// A payout for this match is already journaled.
		log.WithField("match_id", f.MatchID).Warn("duplicate settlement credit rejected")
		return &game.FinalizeResult{}, nil
	case err != nil:
		return nil, err
	}
	return result, nil
}

// guardHolds checks the expected phase and the optional turn guard against the
// locked row.
func guardHolds(gs *models.GameState, f game.Finalization) bool {
	if f.ExpectPhase != "" && gs.Phase != f.ExpectPhase {
		return false
	}
	g := f.Guard
	if g == nil {
		return true
	}
	if gs.CurrentTurn != g.Turn {
		return false
	}

	switch g.ReadySlot {
	case 0:
		if gs.P1Ready || gs.P2Ready {
			return false
		}
		last := gs.CreatedAt
		if gs.TurnResolvedAt != nil {
			last = *gs.TurnResolvedAt
		}
		return last.Before(g.IdleSince)
	case 1, 2:
		if !gs.Ready(g.ReadySlot) || gs.Ready(3-g.ReadySlot) {
			return false
		}
		return gs.TurnStartedAt != nil && gs.TurnStartedAt.Before(g.IdleSince)
	}
	return false
}

// ListAbandoned returns active turns where exactly one player submitted before cutoff.
func (s *MatchStore) ListAbandoned(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	return s.listStates(ctx, `m.status = 'active' AND gs.phase = 'planning'
		AND gs.p1_ready <> gs.p2_ready
		AND gs.turn_started_at < $1
		ORDER BY gs.turn_started_at`, cutoff)
}

// ListIdle returns active matches where nobody submitted since cutoff.
func (s *MatchStore) ListIdle(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	return s.listStates(ctx, `m.status = 'active' AND gs.phase = 'planning'
		AND NOT gs.p1_ready AND NOT gs.p2_ready
		AND COALESCE(gs.turn_resolved_at, gs.created_at) < $1
		ORDER BY COALESCE(gs.turn_resolved_at, gs.created_at)`, cutoff)
}

// ListStalled returns turns where both players submitted but the resolution never committed.
func (s *MatchStore) ListStalled(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	return s.listStates(ctx, `m.status = 'active' AND gs.phase = 'planning'
		AND gs.p1_ready AND gs.p2_ready
		AND gs.updated_at < $1
		ORDER BY gs.updated_at`, cutoff)
}

// ListUnsettled returns resolved games whose match was never finalized.
func (s *MatchStore) ListUnsettled(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	return s.listStates(ctx, `m.status IN ('waiting', 'active') AND gs.phase = 'game_over'
		AND gs.updated_at < $1
		ORDER BY gs.updated_at`, cutoff)
}

func (s *MatchStore) listStates(ctx context.Context, where string, cutoff time.Time) ([]models.GameState, error) {
	states := []models.GameState{}
	query := fmt.Sprintf(`SELECT %s FROM game_states gs JOIN matches m ON m.id = gs.match_id WHERE %s LIMIT %d`,
		stateCols("gs"), where, sweepBatch)
	if err := s.db.SelectContext(ctx, &states, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list game states: %w", err)
	}
	return states, nil
}

func toInt64s(a []int) []int64 {
	out := make([]int64, len(a))
	for i, v := range a {
		out[i] = int64(v)
	}
	return out
}
