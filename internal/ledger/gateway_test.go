package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGateway_CreatePlayer(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	g := NewGateway(testDB.DB)
	ctx := context.Background()

	t.Run("guest", func(t *testing.T) {
		p, err := g.CreatePlayer(ctx, "guest one", nil)
		require.NoError(t, err)
		assert.True(t, p.IsGuest)
		assert.Equal(t, 500, p.Rating)
		assert.True(t, p.Balance.IsZero())
	})

	t.Run("wallet upsert returns existing player", func(t *testing.T) {
		addr := "0xabc"
		first, err := g.CreatePlayer(ctx, "alice", &addr)
		require.NoError(t, err)
		assert.False(t, first.IsGuest)

		again, err := g.CreatePlayer(ctx, "", &addr)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "alice", again.DisplayName)
	})
}

func TestGateway_BalanceMovements(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	g := NewGateway(testDB.DB)
	ctx := context.Background()

	p, err := g.CreatePlayer(ctx, "bob", nil)
	require.NoError(t, err)

	funded, err := g.AdminCredit(ctx, p.ID, dec("0.05"))
	require.NoError(t, err)
	assert.True(t, funded.Balance.Equal(dec("0.05")))

	t.Run("debit beyond balance is rejected without change", func(t *testing.T) {
		_, err := Debit(ctx, testDB.DB, p.ID, nil, dec("0.1"), game.EntryEscrow)
		assert.ErrorIs(t, err, game.ErrInsufficientBalance)

		after, err := g.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, after.Balance.Equal(dec("0.05")))
	})

	t.Run("debit within balance", func(t *testing.T) {
		bal, err := Debit(ctx, testDB.DB, p.ID, nil, dec("0.05"), game.EntryEscrow)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
	})

	t.Run("unknown player", func(t *testing.T) {
		_, err := Debit(ctx, testDB.DB, 999999, nil, dec("1"), game.EntryEscrow)
		assert.ErrorIs(t, err, game.ErrPlayerNotFound)
		_, err = Credit(ctx, testDB.DB, 999999, nil, dec("1"), game.EntryAdminCredit)
		assert.ErrorIs(t, err, game.ErrPlayerNotFound)
	})

	t.Run("journal records signed amounts", func(t *testing.T) {
		entries, err := g.Entries(ctx, p.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, game.EntryEscrow, entries[0].EntryType)
		assert.True(t, entries[0].Amount.Equal(dec("-0.05")))
		assert.Equal(t, game.EntryAdminCredit, entries[1].EntryType)
		assert.True(t, entries[1].BalanceAfter.Equal(dec("0.05")))
	})
}

func TestGateway_StatsAndRating(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	g := NewGateway(testDB.DB)
	ctx := context.Background()

	p, err := g.CreatePlayer(ctx, "carol", nil)
	require.NoError(t, err)

	require.NoError(t, g.RecordWin(ctx, p.ID))
	require.NoError(t, g.RecordWin(ctx, p.ID))
	require.NoError(t, g.RecordLoss(ctx, p.ID))
	require.NoError(t, g.RecordWin(ctx, p.ID))

	got, err := g.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)

	require.NoError(t, g.ResetStreak(ctx, p.ID))

	r, err := g.ApplyRatingChange(ctx, p.ID, 8)
	require.NoError(t, err)
	assert.Equal(t, 508, r)

	r, err = g.ApplyRatingChange(ctx, p.ID, -1000)
	require.NoError(t, err)
	assert.Equal(t, 100, r)

	assert.ErrorIs(t, g.RecordWin(ctx, 424242), game.ErrPlayerNotFound)
}

func TestAccrueFee(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	g := NewGateway(testDB.DB)
	ctx := context.Background()

	accrued, err := AccrueFee(ctx, testDB.DB, dec("0.01"))
	require.NoError(t, err)
	assert.True(t, accrued.Equal(dec("0.01")))

	accrued, err = AccrueFee(ctx, testDB.DB, dec("0.02"))
	require.NoError(t, err)
	assert.True(t, accrued.Equal(dec("0.03")))

	fees, err := g.PlatformFees(ctx)
	require.NoError(t, err)
	assert.True(t, fees.Lifetime.Equal(dec("0.03")))
}
