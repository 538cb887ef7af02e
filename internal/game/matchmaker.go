package game

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/models"
)

// Queue statuses returned to clients.
const (
	QueueStatusMatched   = "matched"
	QueueStatusQueued    = "queued"
	QueueStatusNotQueued = "not_queued"
	QueueStatusLeft      = "left"
	QueueStatusIdle      = "idle"
)

// JoinResult is the outcome of join or joinSpecific.
type JoinResult struct {
	Status  string `json:"status"`
	MatchID string `json:"matchId,omitempty"`
}

// LeaveResult is the outcome of leave.
type LeaveResult struct {
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	Status         string          `json:"status"`
	MatchID        string          `json:"matchId,omitempty"`
}

// QueueStatus describes where a player currently is.
type QueueStatus struct {
	Status      string           `json:"status"`
	MatchID     string           `json:"matchId,omitempty"`
	WagerAmount *decimal.Decimal `json:"wagerAmount,omitempty"`
	JoinedAt    *time.Time       `json:"joinedAt,omitempty"`
}

// Matchmaker runs the matchmaking queue. It holds no state between calls.
type Matchmaker struct {
	queue     QueueStore
	players   PlayerStore
	matches   MatchStore
	publisher Publisher
	tiers     []decimal.Decimal
}

// NewMatchmaker creates a matchmaker. An empty tier list accepts any non-negative wager.
func NewMatchmaker(queue QueueStore, players PlayerStore, matches MatchStore, publisher Publisher, tiers []decimal.Decimal) *Matchmaker {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Matchmaker{
		queue:     queue,
		players:   players,
		matches:   matches,
		publisher: publisher,
		tiers:     tiers,
	}
}

func (mm *Matchmaker) validWager(w decimal.Decimal) bool {
	if w.IsNegative() {
		return false
	}
	if len(mm.tiers) == 0 {
		return true
	}
	for _, t := range mm.tiers {
		if t.Equal(w) {
			return true
		}
	}
	return false
}

// Join escrows the wager, queues the player and tries to pair immediately.
func (mm *Matchmaker) Join(ctx context.Context, playerID int64, wager decimal.Decimal) (*JoinResult, error) {
	if !mm.validWager(wager) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWager, wager.String())
	}

	player, err := mm.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	// Fast rejection; the conditional debit in Enqueue is the real check.
	if wager.IsPositive() && player.Balance.LessThan(wager) {
		return nil, ErrInsufficientBalance
	}

	if err := mm.queue.Enqueue(ctx, playerID, wager); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"wager":     wager.String(),
	}).Info("player queued")

	return mm.tryPair(ctx, playerID, nil)
}

// JoinSpecific queues the player at the target's wager and pairs only with the target.
func (mm *Matchmaker) JoinSpecific(ctx context.Context, playerID, targetID int64) (*JoinResult, error) {
	if playerID == targetID {
		return nil, ErrSelfTarget
	}

	if _, err := mm.players.GetPlayer(ctx, targetID); err != nil {
		return nil, err
	}

	target, err := mm.queue.GetEntry(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target entry: %w", err)
	}
	if target == nil {
		return nil, ErrTargetNotQueued
	}

	player, err := mm.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if target.WagerAmount.IsPositive() && player.Balance.LessThan(target.WagerAmount) {
		return nil, ErrInsufficientBalance
	}

	if err := mm.queue.Enqueue(ctx, playerID, target.WagerAmount); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"target_id": targetID,
		"wager":     target.WagerAmount.String(),
	}).Info("player queued against target")

	return mm.tryPair(ctx, playerID, &targetID)
}

func (mm *Matchmaker) tryPair(ctx context.Context, playerID int64, targetID *int64) (*JoinResult, error) {
	match, err := mm.queue.PairAndCreate(ctx, playerID, targetID)
	if err != nil {
		// The entry and escrow stay in place; the backstop pairing job or a
		// later joiner can still pick the player up.
		log.WithError(err).WithField("player_id", playerID).Warn("pairing attempt failed, player left queued")
		return &JoinResult{Status: QueueStatusQueued}, nil
	}
	if match == nil {
		return &JoinResult{Status: QueueStatusQueued}, nil
	}

	mm.announce(ctx, match)
	return &JoinResult{Status: QueueStatusMatched, MatchID: match.ID}, nil
}

// Leave removes the player from the queue and refunds the escrow. Losing the race
// against pairing is not an error.
func (mm *Matchmaker) Leave(ctx context.Context, playerID int64) (*LeaveResult, error) {
	entry, err := mm.queue.Dequeue(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave queue: %w", err)
	}

	if entry == nil {
		res := &LeaveResult{RefundedAmount: decimal.Zero, Status: QueueStatusNotQueued}
		if m, err := mm.matches.LatestActiveMatch(ctx, playerID); err == nil && m != nil {
			res.MatchID = m.ID
		}
		return res, nil
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"refund":    entry.WagerAmount.String(),
	}).Info("player left queue")

	return &LeaveResult{RefundedAmount: entry.WagerAmount, Status: QueueStatusLeft}, nil
}

// Status reports whether the player is queued, in an active match, or idle.
func (mm *Matchmaker) Status(ctx context.Context, playerID int64) (*QueueStatus, error) {
	entry, err := mm.queue.GetEntry(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &QueueStatus{
			Status:      QueueStatusQueued,
			WagerAmount: &entry.WagerAmount,
			JoinedAt:    &entry.JoinedAt,
		}, nil
	}

	m, err := mm.matches.LatestActiveMatch(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return &QueueStatus{Status: QueueStatusMatched, MatchID: m.ID}, nil
	}
	return &QueueStatus{Status: QueueStatusIdle}, nil
}

// PairWaiting is the backstop for joiners that skipped each other's locked rows.
func (mm *Matchmaker) PairWaiting(ctx context.Context) error {
	matches, err := mm.queue.PairWaiting(ctx)
	if err != nil {
		return fmt.Errorf("failed to pair waiting players: %w", err)
	}
	for _, m := range matches {
		mm.announce(ctx, m)
	}
	return nil
}

func (mm *Matchmaker) announce(ctx context.Context, m *models.Match) {
	log.WithFields(log.Fields{
		"match_id": m.ID,
		"player1":  m.Player1ID,
		"player2":  m.Player2ID,
		"wager":    m.WagerAmount.String(),
	}).Info("match created")

	mm.publisher.Publish(ctx, Event{
		Type:    EventMatched,
		MatchID: m.ID,
		Players: []int64{m.Player1ID, m.Player2ID},
		Status:  m.Status,
		At:      m.CreatedAt,
	})
}
