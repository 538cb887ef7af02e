package handlers

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/payout"
)

// Matchmaking is implemented by game.Matchmaker.
type Matchmaking interface {
	Join(ctx context.Context, playerID int64, wager decimal.Decimal) (*game.JoinResult, error)
	JoinSpecific(ctx context.Context, playerID, targetID int64) (*game.JoinResult, error)
	Leave(ctx context.Context, playerID int64) (*game.LeaveResult, error)
	Status(ctx context.Context, playerID int64) (*game.QueueStatus, error)
}

// Turns is implemented by game.TurnEngine.
type Turns interface {
	SubmitTurn(ctx context.Context, req game.SubmitTurnRequest) (*game.TurnResult, error)
	State(ctx context.Context, matchID string, viewerID int64) (*game.StateView, error)
	Heartbeat(ctx context.Context, matchID string, playerID int64) error
}

// Settlement is implemented by game.Settler.
type Settlement interface {
	Settle(ctx context.Context, req game.SettleRequest) (*game.SettleResult, error)
}

// ForfeitClaims is implemented by game.Sweeper.
type ForfeitClaims interface {
	ClaimForfeit(ctx context.Context, matchID string, claimantID, winnerID int64) (*game.SettleResult, error)
}

// Players is implemented by ledger.Gateway.
type Players interface {
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	CreatePlayer(ctx context.Context, displayName string, walletAddress *string) (*models.Player, error)
	AdminCredit(ctx context.Context, id int64, amount decimal.Decimal) (*models.Player, error)
	Entries(ctx context.Context, id int64, limit int) ([]models.LedgerEntry, error)
}

// MatchHistory is implemented by store.MatchStore.
type MatchHistory interface {
	RecentMatches(ctx context.Context, playerID int64, limit int) ([]models.Match, error)
}

// FeeCollector is implemented by payout.Collector.
type FeeCollector interface {
	Collect(ctx context.Context) (*payout.CollectResult, error)
}

// Withdrawals is implemented by store.WithdrawalStore.
type Withdrawals interface {
	List(ctx context.Context, limit int) ([]models.FeeWithdrawal, error)
}

// AdminAuth is implemented by admin.Service.
type AdminAuth interface {
	ValidateAdmin(ctx context.Context, username, token string) (*models.AdminAccount, error)
	LogAction(ctx context.Context, username, ip, route, action string, details map[string]interface{}, success bool)
}
