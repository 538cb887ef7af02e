package presence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/silostrike/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchID = "6f1c1a52-0d43-4b8e-9d0c-2b8f6d0e3a11"

func TestParseMember(t *testing.T) {
	m, p, ok := parseMember(member(matchID, 42))
	require.True(t, ok)
	assert.Equal(t, matchID, m)
	assert.Equal(t, int64(42), p)

	for _, bad := range []string{"", "x:1:p:2", "m:abc", "m:abc:p:", "m:abc:p:x"} {
		_, _, ok := parseMember(bad)
		assert.False(t, ok, bad)
	}
}

func TestTracker(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()

	clock := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(rdb)
	tr.now = func() time.Time { return clock }

	_, ok, err := tr.LastSeen(ctx, matchID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tr.Touch(ctx, matchID, 1))
	clock = clock.Add(30 * time.Second)
	require.NoError(t, tr.Touch(ctx, matchID, 2))

	seen, ok, err := tr.LastSeen(ctx, matchID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, seen.Equal(clock.Add(-30*time.Second)))

	stale, err := tr.Stale(ctx, clock.Add(-20*time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, matchID, stale[0].MatchID)
	assert.Equal(t, int64(1), stale[0].PlayerID)

	// A fresh heartbeat takes the player out of the stale set.
	require.NoError(t, tr.Touch(ctx, matchID, 1))
	stale, err = tr.Stale(ctx, clock.Add(-20*time.Second))
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, tr.Forget(ctx, matchID, 1, 2))
	_, ok, err = tr.LastSeen(ctx, matchID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tr.Forget(ctx, matchID))
}

func TestTracker_DropsGarbageMembers(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()
	tr := NewTracker(rdb)

	require.NoError(t, rdb.ZAdd(ctx, DefaultKey, redis.Z{Score: 1, Member: "garbage"}).Err())

	stale, err := tr.Stale(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, stale)

	n, err := rdb.ZCard(ctx, DefaultKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
