package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockPlayerStore is a mock implementation of PlayerStore
type MockPlayerStore struct {
	mock.Mock
}

func (m *MockPlayerStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *MockPlayerStore) RecordWin(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPlayerStore) RecordLoss(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPlayerStore) ResetStreak(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPlayerStore) ApplyRatingChange(ctx context.Context, id int64, delta int) (int, error) {
	args := m.Called(ctx, id, delta)
	return args.Int(0), args.Error(1)
}

// MockQueueStore is a mock implementation of QueueStore
type MockQueueStore struct {
	mock.Mock
}

func (m *MockQueueStore) Enqueue(ctx context.Context, playerID int64, wager decimal.Decimal) error {
	return m.Called(ctx, playerID, wager).Error(0)
}

func (m *MockQueueStore) PairAndCreate(ctx context.Context, playerID int64, targetID *int64) (*models.Match, error) {
	args := m.Called(ctx, playerID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockQueueStore) PairWaiting(ctx context.Context) ([]*models.Match, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Match), args.Error(1)
}

func (m *MockQueueStore) GetEntry(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

func (m *MockQueueStore) Dequeue(ctx context.Context, playerID int64) (*models.QueueEntry, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

func (m *MockQueueStore) ListStale(ctx context.Context, cutoff time.Time) ([]models.QueueEntry, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QueueEntry), args.Error(1)
}

func (m *MockQueueStore) ExpireEntry(ctx context.Context, playerID int64, cutoff time.Time) (*models.QueueEntry, error) {
	args := m.Called(ctx, playerID, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

// MockMatchStore is a mock implementation of MatchStore
type MockMatchStore struct {
	mock.Mock
}

func (m *MockMatchStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockMatchStore) GetGameState(ctx context.Context, matchID string) (*models.GameState, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameState), args.Error(1)
}

func (m *MockMatchStore) LatestActiveMatch(ctx context.Context, playerID int64) (*models.Match, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockMatchStore) SubmitMoves(ctx context.Context, matchID string, turn, slot int, moves Moves, now time.Time) (*models.GameState, error) {
	args := m.Called(ctx, matchID, turn, slot, moves, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameState), args.Error(1)
}

func (m *MockMatchStore) CommitResolution(ctx context.Context, matchID string, turn int, res Resolution, winnerID *int64, now time.Time) (bool, error) {
	args := m.Called(ctx, matchID, turn, res, winnerID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockMatchStore) Finalize(ctx context.Context, f Finalization) (*FinalizeResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FinalizeResult), args.Error(1)
}

func (m *MockMatchStore) ListAbandoned(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GameState), args.Error(1)
}

func (m *MockMatchStore) ListIdle(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GameState), args.Error(1)
}

func (m *MockMatchStore) ListStalled(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GameState), args.Error(1)
}

func (m *MockMatchStore) ListUnsettled(ctx context.Context, cutoff time.Time) ([]models.GameState, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GameState), args.Error(1)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event Event) {
	m.Called(ctx, event)
}

// MockPresence is a mock implementation of Presence
type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) Touch(ctx context.Context, matchID string, playerID int64) error {
	return m.Called(ctx, matchID, playerID).Error(0)
}

func (m *MockPresence) LastSeen(ctx context.Context, matchID string, playerID int64) (time.Time, bool, error) {
	args := m.Called(ctx, matchID, playerID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockPresence) Stale(ctx context.Context, cutoff time.Time) ([]PresenceMember, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PresenceMember), args.Error(1)
}

func (m *MockPresence) Forget(ctx context.Context, matchID string, playerIDs ...int64) error {
	args := []interface{}{ctx, matchID}
	for _, id := range playerIDs {
		args = append(args, id)
	}
	return m.Called(args...).Error(0)
}

// MockFeeTrigger is a mock implementation of FeeTrigger
type MockFeeTrigger struct {
	mock.Mock
}

func (m *MockFeeTrigger) TriggerWithdrawal() {
	m.Called()
}

// MockSettlement is a mock implementation of Settlement
type MockSettlement struct {
	mock.Mock
}

func (m *MockSettlement) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SettleResult), args.Error(1)
}
