package handlers

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/payout"
	"github.com/stretchr/testify/mock"
)

type MockMatchmaking struct {
	mock.Mock
}

func (m *MockMatchmaking) Join(ctx context.Context, playerID int64, wager decimal.Decimal) (*game.JoinResult, error) {
	args := m.Called(ctx, playerID, wager)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.JoinResult), args.Error(1)
}

func (m *MockMatchmaking) JoinSpecific(ctx context.Context, playerID, targetID int64) (*game.JoinResult, error) {
	args := m.Called(ctx, playerID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.JoinResult), args.Error(1)
}

func (m *MockMatchmaking) Leave(ctx context.Context, playerID int64) (*game.LeaveResult, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.LeaveResult), args.Error(1)
}

func (m *MockMatchmaking) Status(ctx context.Context, playerID int64) (*game.QueueStatus, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.QueueStatus), args.Error(1)
}

type MockTurns struct {
	mock.Mock
}

func (m *MockTurns) SubmitTurn(ctx context.Context, req game.SubmitTurnRequest) (*game.TurnResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.TurnResult), args.Error(1)
}

func (m *MockTurns) State(ctx context.Context, matchID string, viewerID int64) (*game.StateView, error) {
	args := m.Called(ctx, matchID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.StateView), args.Error(1)
}

func (m *MockTurns) Heartbeat(ctx context.Context, matchID string, playerID int64) error {
	args := m.Called(ctx, matchID, playerID)
	return args.Error(0)
}

type MockSettlement struct {
	mock.Mock
}

func (m *MockSettlement) Settle(ctx context.Context, req game.SettleRequest) (*game.SettleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.SettleResult), args.Error(1)
}

type MockForfeits struct {
	mock.Mock
}

func (m *MockForfeits) ClaimForfeit(ctx context.Context, matchID string, claimantID, winnerID int64) (*game.SettleResult, error) {
	args := m.Called(ctx, matchID, claimantID, winnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*game.SettleResult), args.Error(1)
}

type MockPlayers struct {
	mock.Mock
}

func (m *MockPlayers) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayers) CreatePlayer(ctx context.Context, displayName string, walletAddress *string) (*models.Player, error) {
	args := m.Called(ctx, displayName, walletAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayers) AdminCredit(ctx context.Context, id int64, amount decimal.Decimal) (*models.Player, error) {
	args := m.Called(ctx, id, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayers) Entries(ctx context.Context, id int64, limit int) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

type MockAdmins struct {
	mock.Mock
}

func (m *MockAdmins) ValidateAdmin(ctx context.Context, username, token string) (*models.AdminAccount, error) {
	args := m.Called(ctx, username, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockAdmins) LogAction(ctx context.Context, username, ip, route, action string, details map[string]interface{}, success bool) {
	m.Called(ctx, username, ip, route, action, details, success)
}

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) Collect(ctx context.Context) (*payout.CollectResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.CollectResult), args.Error(1)
}

type MockWithdrawals struct {
	mock.Mock
}

func (m *MockWithdrawals) List(ctx context.Context, limit int) ([]models.FeeWithdrawal, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeeWithdrawal), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) RecentMatches(ctx context.Context, playerID int64, limit int) ([]models.Match, error) {
	args := m.Called(ctx, playerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Match), args.Error(1)
}
