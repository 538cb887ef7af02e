package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/ledger"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/testutil"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	db      *testutil.TestDatabase
	players *ledger.Gateway
	queue   *QueueStore
	matches *MatchStore
	fees    *WithdrawalStore
}

func newFixture(t *testing.T) *fixture {
	db := testutil.SetupTestDatabase(t)
	return &fixture{
		db:      db,
		players: ledger.NewGateway(db.DB),
		queue:   NewQueueStore(db.DB),
		matches: NewMatchStore(db.DB),
		fees:    NewWithdrawalStore(db.DB),
	}
}

// fundedPlayer creates a guest with the given balance.
func (f *fixture) fundedPlayer(t *testing.T, balance string) *models.Player {
	t.Helper()
	ctx := context.Background()
	p, err := f.players.CreatePlayer(ctx, "", nil)
	require.NoError(t, err)
	if b := dec(balance); b.IsPositive() {
		p, err = f.players.AdminCredit(ctx, p.ID, b)
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	p, err := f.players.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return p.Balance
}

// pairedMatch queues two funded players at wager and pairs them.
func (f *fixture) pairedMatch(t *testing.T, wager string) (*models.Match, *models.Player, *models.Player) {
	t.Helper()
	ctx := context.Background()
	a := f.fundedPlayer(t, "1")
	b := f.fundedPlayer(t, "1")
	require.NoError(t, f.queue.Enqueue(ctx, a.ID, dec(wager)))
	require.NoError(t, f.queue.Enqueue(ctx, b.ID, dec(wager)))
	m, err := f.queue.PairAndCreate(ctx, b.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m, a, b
}
