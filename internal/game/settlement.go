package game

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/rating"
)

// Settlement outcomes.
const (
	SettleStatusSettled        = "settled"
	SettleStatusAlreadySettled = "already_settled"
)

// feeScale is the number of decimal places money is stored with.
const feeScale = 9

// SettleRequest describes how a match ended.
type SettleRequest struct {
	MatchID string
	// WinnerID is nil for a draw.
	WinnerID    *int64
	Status      string
	Reason      string
	ForfeitedBy *int64
	ExpectPhase string
	Guard       *TurnGuard
}

// SettleResult reports the effect of a settlement call.
type SettleResult struct {
	Status   string          `json:"status"`
	MatchID  string          `json:"matchId"`
	WinnerID *int64          `json:"winnerId,omitempty"`
	Payout   decimal.Decimal `json:"payout"`
	Fee      decimal.Decimal `json:"fee"`
}

// Settler finalizes matches. Funds move inside the store transaction; stats and
// rating are applied afterwards and never undo a committed payout.
type Settler struct {
	matches      MatchStore
	players      PlayerStore
	presence     Presence
	publisher    Publisher
	fees         FeeTrigger
	feeRate      decimal.Decimal
	feeThreshold decimal.Decimal
	now          func() time.Time
}

// SettlerConfig carries the fee policy.
type SettlerConfig struct {
	FeeRate      decimal.Decimal
	FeeThreshold decimal.Decimal
}

// NewSettler creates a settler. presence, publisher and fees may be nil.
func NewSettler(matches MatchStore, players PlayerStore, presence Presence, publisher Publisher, fees FeeTrigger, cfg SettlerConfig) *Settler {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if fees == nil {
		fees = nopFeeTrigger{}
	}
	return &Settler{
		matches:      matches,
		players:      players,
		presence:     presence,
		publisher:    publisher,
		fees:         fees,
		feeRate:      cfg.FeeRate,
		feeThreshold: cfg.FeeThreshold,
		now:          time.Now,
	}
}

// Settle ends a match exactly once. A second call, or a call that loses the race
// against another finalization, is a successful no-op.
func (s *Settler) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	m, err := s.matches.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	if IsTerminal(m.Status) {
		return s.alreadySettled(m), nil
	}
	if req.WinnerID != nil && m.Slot(*req.WinnerID) == 0 {
		return nil, ErrInvalidWinner
	}

	status := req.Status
	if status == "" {
		status = StatusCompleted
	}
	forfeitedBy := req.ForfeitedBy
	if status == StatusForfeit && forfeitedBy == nil && req.WinnerID != nil {
		forfeitedBy = int64Ptr(m.Opponent(*req.WinnerID))
	}

	credits, payout, fee := s.amounts(m, req.WinnerID)
	now := s.now()

	res, err := s.matches.Finalize(ctx, Finalization{
		MatchID:     m.ID,
		Status:      status,
		WinnerID:    req.WinnerID,
		Reason:      req.Reason,
		ForfeitedBy: forfeitedBy,
		ExpectPhase: req.ExpectPhase,
		Guard:       req.Guard,
		Credits:     credits,
		Fee:         fee,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize match %s: %w", m.ID, err)
	}

	fields := log.Fields{
		"match_id": m.ID,
		"status":   status,
		"reason":   req.Reason,
	}
	if !res.Applied {
		log.WithFields(fields).Debug("settlement skipped, match already finalized")
		return s.alreadySettled(m), nil
	}

	if req.WinnerID != nil {
		fields["winner_id"] = *req.WinnerID
	}
	fields["payout"] = payout.String()
	fields["fee"] = fee.String()
	log.WithFields(fields).Info("match settled")

	for _, q := range res.QueueRefunds {
		log.WithFields(log.Fields{
			"match_id":  m.ID,
			"player_id": q.PlayerID,
			"refund":    q.WagerAmount.String(),
		}).Info("removed residual queue entry")
	}

	s.updateStats(ctx, m, req.WinnerID)

	s.publisher.Publish(ctx, Event{
		Type:     EventGameOver,
		MatchID:  m.ID,
		Players:  []int64{m.Player1ID, m.Player2ID},
		Status:   status,
		WinnerID: req.WinnerID,
		Reason:   req.Reason,
		At:       now,
	})

	if s.presence != nil {
		if err := s.presence.Forget(ctx, m.ID, m.Player1ID, m.Player2ID); err != nil {
			log.WithError(err).WithField("match_id", m.ID).Warn("failed to clear presence")
		}
	}

	if fee.IsPositive() && s.feeThreshold.IsPositive() && res.FeeAccrued.GreaterThanOrEqual(s.feeThreshold) {
		log.WithField("accrued", res.FeeAccrued.String()).Info("fee threshold reached, triggering withdrawal")
		s.fees.TriggerWithdrawal()
	}

	return &SettleResult{
		Status:   SettleStatusSettled,
		MatchID:  m.ID,
		WinnerID: req.WinnerID,
		Payout:   payout,
		Fee:      fee,
	}, nil
}

func (s *Settler) alreadySettled(m *models.Match) *SettleResult {
	return &SettleResult{
		Status:   SettleStatusAlreadySettled,
		MatchID:  m.ID,
		WinnerID: m.WinnerID,
		Payout:   decimal.Zero,
		Fee:      decimal.Zero,
	}
}

// amounts computes the balance movements. The loser's wager was escrowed at
// queue time and is part of the pot; a draw refunds both escrows.
func (s *Settler) amounts(m *models.Match, winnerID *int64) ([]Credit, decimal.Decimal, decimal.Decimal) {
	if !m.IsWagered() {
		return nil, decimal.Zero, decimal.Zero
	}

	if winnerID == nil {
		return []Credit{
			{PlayerID: m.Player1ID, Amount: m.WagerAmount, EntryType: EntryDrawRefund},
			{PlayerID: m.Player2ID, Amount: m.WagerAmount, EntryType: EntryDrawRefund},
		}, decimal.Zero, decimal.Zero
	}

	pot := m.WagerAmount.Mul(decimal.NewFromInt(2))
	fee := pot.Mul(s.feeRate).Round(feeScale)
	payout := pot.Sub(fee)
	return []Credit{{PlayerID: *winnerID, Amount: payout, EntryType: EntryPayout}}, payout, fee
}

// updateStats applies win/loss counters, streaks and rating. Failures are logged only.
func (s *Settler) updateStats(ctx context.Context, m *models.Match, winnerID *int64) {
	logFail := func(err error, playerID int64, what string) {
		log.WithError(err).WithFields(log.Fields{
			"match_id":  m.ID,
			"player_id": playerID,
		}).Errorf("failed to update %s", what)
	}

	if winnerID == nil {
		for _, id := range []int64{m.Player1ID, m.Player2ID} {
			if err := s.players.ResetStreak(ctx, id); err != nil {
				logFail(err, id, "streak")
			}
		}
		return
	}

	winner := *winnerID
	loser := m.Opponent(winner)

	if err := s.players.RecordWin(ctx, winner); err != nil {
		logFail(err, winner, "win stats")
	}
	if err := s.players.RecordLoss(ctx, loser); err != nil {
		logFail(err, loser, "loss stats")
	}

	wp, err := s.players.GetPlayer(ctx, winner)
	if err != nil {
		logFail(err, winner, "rating")
		return
	}
	lp, err := s.players.GetPlayer(ctx, loser)
	if err != nil {
		logFail(err, loser, "rating")
		return
	}

	out := rating.Decide(wp.Rating, lp.Rating)
	newWinner, err := s.players.ApplyRatingChange(ctx, winner, out.WinnerDelta)
	if err != nil {
		logFail(err, winner, "rating")
	}
	newLoser, err := s.players.ApplyRatingChange(ctx, loser, out.LoserDelta)
	if err != nil {
		logFail(err, loser, "rating")
	}

	log.WithFields(log.Fields{
		"match_id":     m.ID,
		"winner_id":    winner,
		"winner_delta": out.WinnerDelta,
		"winner_new":   newWinner,
		"loser_id":     loser,
		"loser_delta":  out.LoserDelta,
		"loser_new":    newLoser,
	}).Info("ratings updated")
}
