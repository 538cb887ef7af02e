package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/models"
)

// PlayerStore is the player ledger gateway: balances, stats and rating.
// Every mutation is a single atomic increment in the store.
type PlayerStore interface {
	// GetPlayer returns ErrPlayerNotFound for unknown ids.
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)

	// RecordWin increments wins and the current streak, raising the longest streak if needed.
	RecordWin(ctx context.Context, id int64) error

	// RecordLoss increments losses and resets the current streak.
	RecordLoss(ctx context.Context, id int64) error

	// ResetStreak sets the current streak to zero.
	ResetStreak(ctx context.Context, id int64) error

	// ApplyRatingChange adds delta to the rating, clamped at the floor, and returns the new rating.
	ApplyRatingChange(ctx context.Context, id int64, delta int) (int, error)
}

// QueueStore holds waiting players and performs atomic pairing.
type QueueStore interface {
	// Enqueue inserts the entry and escrows the wager in one transaction.
	// Returns ErrAlreadyQueued, ErrInsufficientBalance or ErrPlayerNotFound.
	Enqueue(ctx context.Context, playerID int64, wager decimal.Decimal) error

	// PairAndCreate removes the caller's entry and an opponent entry with the same
	// wager and creates the match and its game state, all in one transaction.
	// targetID restricts the opponent. Returns nil, nil when no pair could be claimed.
	PairAndCreate(ctx context.Context, playerID int64, targetID *int64) (*models.Match, error)

	// PairWaiting pairs the oldest entries of every wager tier until no pair remains.
	PairWaiting(ctx context.Context) ([]*models.Match, error)

	// GetEntry returns nil, nil when the player is not queued.
	GetEntry(ctx context.Context, playerID int64) (*models.QueueEntry, error)

	// Dequeue removes the entry and refunds the escrow. Returns nil, nil when not queued.
	Dequeue(ctx context.Context, playerID int64) (*models.QueueEntry, error)

	// ListStale returns entries that joined before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]models.QueueEntry, error)

	// ExpireEntry removes and refunds the entry only if it still joined before cutoff.
	// Returns nil, nil when the row is already gone.
	ExpireEntry(ctx context.Context, playerID int64, cutoff time.Time) (*models.QueueEntry, error)
}

// MatchStore holds matches and their game states.
type MatchStore interface {
	// GetMatch returns ErrMatchNotFound for unknown ids.
	GetMatch(ctx context.Context, id string) (*models.Match, error)

	// GetGameState returns ErrMatchNotFound for unknown ids.
	GetGameState(ctx context.Context, matchID string) (*models.GameState, error)

	// LatestActiveMatch returns the newest active match of a player or nil, nil.
	LatestActiveMatch(ctx context.Context, playerID int64) (*models.Match, error)

	// SubmitMoves marks the slot ready with its moves if the turn is still turn,
	// the phase is planning and the slot is not ready yet. Returns nil, nil if the
	// condition did not hold.
	SubmitMoves(ctx context.Context, matchID string, turn, slot int, moves Moves, now time.Time) (*models.GameState, error)

	// CommitResolution writes a resolved turn if the row is still at turn with both
	// players ready in the planning phase. Reports whether this call won.
	CommitResolution(ctx context.Context, matchID string, turn int, res Resolution, winnerID *int64, now time.Time) (bool, error)

	// Finalize applies a settlement atomically. Applied is false when the match was
	// already terminal or the guard no longer holds.
	Finalize(ctx context.Context, f Finalization) (*FinalizeResult, error)

	// ListAbandoned returns active planning states where exactly one player is ready
	// and the turn started before cutoff.
	ListAbandoned(ctx context.Context, cutoff time.Time) ([]models.GameState, error)

	// ListIdle returns active planning states with nobody ready and no activity since cutoff.
	ListIdle(ctx context.Context, cutoff time.Time) ([]models.GameState, error)

	// ListStalled returns active planning states where both players are ready and
	// that were last updated before cutoff.
	ListStalled(ctx context.Context, cutoff time.Time) ([]models.GameState, error)

	// ListUnsettled returns game_over states whose match is still active and that
	// were last updated before cutoff.
	ListUnsettled(ctx context.Context, cutoff time.Time) ([]models.GameState, error)
}

// Credit is a balance increment applied during finalization.
type Credit struct {
	PlayerID  int64
	Amount    decimal.Decimal
	EntryType string
}

// TurnGuard pins a finalization to the game state a sweep observed.
type TurnGuard struct {
	Turn int
	// ReadySlot is the only slot that must be ready, or 0 for none.
	ReadySlot int
	// IdleSince bounds the last activity: turn_started_at when a slot is ready,
	// otherwise the last resolution or creation time.
	IdleSince time.Time
}

// Finalization is everything that must commit together when a match ends.
type Finalization struct {
	MatchID     string
	Status      string
	WinnerID    *int64
	Reason      string
	ForfeitedBy *int64
	// ExpectPhase is the game state phase the row must be in.
	ExpectPhase string
	Guard       *TurnGuard
	Credits     []Credit
	Fee         decimal.Decimal
	Now         time.Time
}

// FinalizeResult reports what the store did.
type FinalizeResult struct {
	Applied bool
	// FeeAccrued is the platform fee counter after this settlement.
	FeeAccrued decimal.Decimal
	// QueueRefunds are residual queue entries removed for the two players.
	QueueRefunds []models.QueueEntry
}

// Publisher pushes match events to connected clients. Delivery is best effort and
// at least once; clients still poll game state.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Presence tracks player heartbeats per match.
type Presence interface {
	Touch(ctx context.Context, matchID string, playerID int64) error
	LastSeen(ctx context.Context, matchID string, playerID int64) (time.Time, bool, error)
	Stale(ctx context.Context, cutoff time.Time) ([]PresenceMember, error)
	Forget(ctx context.Context, matchID string, playerIDs ...int64) error
}

// PresenceMember is one tracked player in one match.
type PresenceMember struct {
	MatchID  string
	PlayerID int64
	LastSeen time.Time
}

// FeeTrigger starts a fee withdrawal without blocking the caller.
type FeeTrigger interface {
	TriggerWithdrawal()
}
