package game

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/models"
)

// SweeperConfig holds the timeouts the sweeps enforce.
type SweeperConfig struct {
	TurnTimeout     time.Duration
	QueueStaleAfter time.Duration
	MatchIdleAfter  time.Duration
	PresenceGrace   time.Duration
	// UnsettledAfter is how long a game_over state may wait for its settlement
	// before the reconcile pass settles it.
	UnsettledAfter time.Duration
	// StalledAfter is how long a turn with both players ready may stay
	// unresolved before the sweep resolves it.
	StalledAfter time.Duration
}

// Sweeper runs the periodic passes that handle client-side abandonment. Every
// pass re-checks its condition inside the store so a race with normal play
// turns into a no-op.
type Sweeper struct {
	matches    MatchStore
	queue      QueueStore
	presence   Presence
	settlement Settlement
	publisher  Publisher
	cfg        SweeperConfig
	now        func() time.Time
}

// NewSweeper creates a sweeper. presence and publisher may be nil.
func NewSweeper(matches MatchStore, queue QueueStore, presence Presence, settlement Settlement, publisher Publisher, cfg SweeperConfig) *Sweeper {
	if cfg.UnsettledAfter == 0 {
		cfg.UnsettledAfter = 10 * time.Second
	}
	if cfg.StalledAfter == 0 {
		cfg.StalledAfter = 10 * time.Second
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Sweeper{
		matches:    matches,
		queue:      queue,
		presence:   presence,
		settlement: settlement,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunTurnSweep is the abandoned-turn job: stalled resolutions, forfeits,
// reconciliation and idle expiry.
func (s *Sweeper) RunTurnSweep(ctx context.Context) error {
	if _, err := s.ResolveStalledTurns(ctx); err != nil {
		return err
	}
	if _, err := s.SweepAbandonedTurns(ctx); err != nil {
		return err
	}
	if _, err := s.ReconcileUnsettled(ctx); err != nil {
		return err
	}
	if _, err := s.ExpireIdleMatches(ctx); err != nil {
		return err
	}
	return nil
}

// ResolveStalledTurns resolves turns where both players submitted but no
// resolution committed, e.g. after a crash between submit and commit. The
// commit goes through the same CAS as a live submission.
func (s *Sweeper) ResolveStalledTurns(ctx context.Context) (int, error) {
	states, err := s.matches.ListStalled(ctx, s.now().Add(-s.cfg.StalledAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stalled turns: %w", err)
	}

	resolved := 0
	for i := range states {
		gs := &states[i]
		m, err := s.matches.GetMatch(ctx, gs.MatchID)
		if err != nil {
			log.WithError(err).WithField("match_id", gs.MatchID).Error("failed to load stalled match")
			continue
		}
		if m.Status != StatusActive {
			continue
		}
		res, err := resolveTurn(ctx, s.matches, s.settlement, s.publisher, m, gs, s.now())
		if err != nil {
			log.WithError(err).WithField("match_id", m.ID).Error("stalled turn resolution failed")
			continue
		}
		if res.TurnResolved {
			resolved++
			log.WithFields(log.Fields{
				"match_id":  m.ID,
				"turn":      gs.CurrentTurn,
				"game_over": res.GameOver,
			}).Warn("resolved stalled turn")
		}
	}
	return resolved, nil
}

// SweepAbandonedTurns forfeits the idle player of every turn where only the
// opponent submitted and the turn started more than TurnTimeout ago.
func (s *Sweeper) SweepAbandonedTurns(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.TurnTimeout)
	states, err := s.matches.ListAbandoned(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list abandoned turns: %w", err)
	}

	settled := 0
	for _, gs := range states {
		readySlot := 1
		if !gs.P1Ready {
			readySlot = 2
		}

		m, err := s.matches.GetMatch(ctx, gs.MatchID)
		if err != nil {
			log.WithError(err).WithField("match_id", gs.MatchID).Warn("abandoned sweep could not load match")
			continue
		}
		winner := m.Player1ID
		if readySlot == 2 {
			winner = m.Player2ID
		}
		loser := m.Opponent(winner)

		res, err := s.settlement.Settle(ctx, SettleRequest{
			MatchID:     m.ID,
			WinnerID:    int64Ptr(winner),
			Status:      StatusForfeit,
			Reason:      ReasonAbandoned,
			ForfeitedBy: int64Ptr(loser),
			ExpectPhase: PhasePlanning,
			Guard: &TurnGuard{
				Turn:      gs.CurrentTurn,
				ReadySlot: readySlot,
				IdleSince: cutoff,
			},
		})
		if err != nil {
			log.WithError(err).WithField("match_id", m.ID).Error("abandoned turn forfeit failed")
			continue
		}
		if res.Status == SettleStatusSettled {
			settled++
			log.WithFields(log.Fields{
				"match_id":  m.ID,
				"turn":      gs.CurrentTurn,
				"winner_id": winner,
				"loser_id":  loser,
			}).Info("forfeited abandoned turn")
		}
	}
	return settled, nil
}

// ReconcileUnsettled settles game_over states whose settlement never ran.
func (s *Sweeper) ReconcileUnsettled(ctx context.Context) (int, error) {
	states, err := s.matches.ListUnsettled(ctx, s.now().Add(-s.cfg.UnsettledAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled matches: %w", err)
	}

	settled := 0
	for _, gs := range states {
		res, err := s.settlement.Settle(ctx, SettleRequest{
			MatchID:     gs.MatchID,
			WinnerID:    gs.WinnerID,
			Status:      StatusCompleted,
			ExpectPhase: PhaseGameOver,
		})
		if err != nil {
			log.WithError(err).WithField("match_id", gs.MatchID).Error("reconcile settlement failed")
			continue
		}
		if res.Status == SettleStatusSettled {
			settled++
			log.WithField("match_id", gs.MatchID).Warn("settled match left unsettled after resolution")
		}
	}
	return settled, nil
}

// ExpireIdleMatches ends matches where nobody submitted for MatchIdleAfter as a draw.
func (s *Sweeper) ExpireIdleMatches(ctx context.Context) (int, error) {
	if s.cfg.MatchIdleAfter <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.cfg.MatchIdleAfter)
	states, err := s.matches.ListIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle matches: %w", err)
	}

	expired := 0
	for _, gs := range states {
		res, err := s.settlement.Settle(ctx, SettleRequest{
			MatchID:     gs.MatchID,
			Status:      StatusCompleted,
			Reason:      ReasonExpired,
			ExpectPhase: PhasePlanning,
			Guard:       &TurnGuard{Turn: gs.CurrentTurn, ReadySlot: 0, IdleSince: cutoff},
		})
		if err != nil {
			log.WithError(err).WithField("match_id", gs.MatchID).Error("idle match expiry failed")
			continue
		}
		if res.Status == SettleStatusSettled {
			expired++
			log.WithField("match_id", gs.MatchID).Info("expired idle match as draw")
		}
	}
	return expired, nil
}

// SweepStaleQueue refunds and removes queue entries older than QueueStaleAfter.
// Entries that vanish between listing and expiry are skipped.
func (s *Sweeper) SweepStaleQueue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.QueueStaleAfter)
	entries, err := s.queue.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale queue entries: %w", err)
	}

	expired := 0
	for _, e := range entries {
		removed, err := s.queue.ExpireEntry(ctx, e.PlayerID, cutoff)
		if err != nil {
			log.WithError(err).WithField("player_id", e.PlayerID).Error("failed to expire queue entry")
			continue
		}
		if removed == nil {
			continue
		}
		expired++
		log.WithFields(log.Fields{
			"player_id": removed.PlayerID,
			"refund":    removed.WagerAmount.String(),
			"joined_at": removed.JoinedAt,
		}).Info("expired stale queue entry")
	}
	return expired, nil
}

// SweepDisconnects forfeits players whose heartbeat went stale while their
// opponent is still connected.
func (s *Sweeper) SweepDisconnects(ctx context.Context) (int, error) {
	if s.presence == nil {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-s.cfg.PresenceGrace)
	members, err := s.presence.Stale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale presence: %w", err)
	}

	forfeited := 0
	for _, pm := range members {
		m, err := s.matches.GetMatch(ctx, pm.MatchID)
		if err != nil {
			if errIsNotFound(err) {
				_ = s.presence.Forget(ctx, pm.MatchID, pm.PlayerID)
			}
			continue
		}
		if m.Status != StatusActive {
			_ = s.presence.Forget(ctx, m.ID, m.Player1ID, m.Player2ID)
			continue
		}

		opponent := m.Opponent(pm.PlayerID)
		seen, ok, err := s.presence.LastSeen(ctx, m.ID, opponent)
		if err != nil || !ok || seen.Before(cutoff) {
			// Both sides gone; the abandoned-turn and idle sweeps cover it.
			continue
		}

		res, err := s.settlement.Settle(ctx, SettleRequest{
			MatchID:     m.ID,
			WinnerID:    int64Ptr(opponent),
			Status:      StatusForfeit,
			Reason:      ReasonDisconnect,
			ForfeitedBy: int64Ptr(pm.PlayerID),
			ExpectPhase: PhasePlanning,
		})
		if err != nil {
			log.WithError(err).WithField("match_id", m.ID).Error("disconnect forfeit failed")
			continue
		}
		if res.Status == SettleStatusSettled {
			forfeited++
			log.WithFields(log.Fields{
				"match_id":  m.ID,
				"player_id": pm.PlayerID,
				"last_seen": pm.LastSeen,
			}).Info("forfeited disconnected player")
		}
	}
	return forfeited, nil
}

// ClaimForfeit handles a participant ending the match early. Naming the opponent
// as winner is a resignation. Naming yourself requires the opponent's heartbeat to
// be stale beyond the grace period.
func (s *Sweeper) ClaimForfeit(ctx context.Context, matchID string, claimantID, winnerID int64) (*SettleResult, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Slot(claimantID) == 0 {
		return nil, ErrNotParticipant
	}
	if m.Slot(winnerID) == 0 {
		return nil, ErrInvalidWinner
	}
	if IsTerminal(m.Status) {
		return s.settlement.Settle(ctx, SettleRequest{MatchID: m.ID})
	}

	if winnerID != claimantID {
		return s.settlement.Settle(ctx, SettleRequest{
			MatchID:     m.ID,
			WinnerID:    int64Ptr(winnerID),
			Status:      StatusForfeit,
			Reason:      ReasonResigned,
			ForfeitedBy: int64Ptr(claimantID),
			ExpectPhase: PhasePlanning,
		})
	}

	opponent := m.Opponent(claimantID)
	gone, err := s.opponentGone(ctx, m, opponent)
	if err != nil {
		return nil, err
	}
	if !gone {
		return nil, ErrOpponentConnected
	}

	return s.settlement.Settle(ctx, SettleRequest{
		MatchID:     m.ID,
		WinnerID:    int64Ptr(claimantID),
		Status:      StatusForfeit,
		Reason:      ReasonDisconnect,
		ForfeitedBy: int64Ptr(opponent),
		ExpectPhase: PhasePlanning,
	})
}

func (s *Sweeper) opponentGone(ctx context.Context, m *models.Match, opponent int64) (bool, error) {
	if s.presence == nil {
		return false, nil
	}
	cutoff := s.now().Add(-s.cfg.PresenceGrace)
	seen, ok, err := s.presence.LastSeen(ctx, m.ID, opponent)
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	if ok {
		return seen.Before(cutoff), nil
	}
	// Never connected: only gone once the match has been running past the grace period.
	started := m.CreatedAt
	if m.StartedAt != nil {
		started = *m.StartedAt
	}
	return started.Before(cutoff), nil
}
