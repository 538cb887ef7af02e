// Package presence tracks per-match player heartbeats in a Redis sorted set.
// Members are "m:{matchID}:p:{playerID}" scored by the last heartbeat in unix
// milliseconds, so the stale scan is a single range query.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/silostrike/backend/internal/game"
)

// DefaultKey is the sorted set holding every tracked member.
const DefaultKey = "presence"

// Tracker implements game.Presence.
type Tracker struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

// NewTracker creates a tracker on the default key.
func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, key: DefaultKey, now: time.Now}
}

func member(matchID string, playerID int64) string {
	return fmt.Sprintf("m:%s:p:%d", matchID, playerID)
}

func parseMember(s string) (string, int64, bool) {
	if !strings.HasPrefix(s, "m:") {
		return "", 0, false
	}
	i := strings.LastIndex(s, ":p:")
	if i < 2 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(s[i+3:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return s[2:i], id, true
}

// Touch records a heartbeat now.
func (t *Tracker) Touch(ctx context.Context, matchID string, playerID int64) error {
	return t.rdb.ZAdd(ctx, t.key, redis.Z{
		Score:  float64(t.now().UnixMilli()),
		Member: member(matchID, playerID),
	}).Err()
}

// LastSeen returns the last heartbeat. ok is false when the player never sent one.
func (t *Tracker) LastSeen(ctx context.Context, matchID string, playerID int64) (time.Time, bool, error) {
	score, err := t.rdb.ZScore(ctx, t.key, member(matchID, playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(int64(score)), true, nil
}

// Stale returns members whose last heartbeat is before cutoff.
func (t *Tracker) Stale(ctx context.Context, cutoff time.Time) ([]game.PresenceMember, error) {
	zs, err := t.rdb.ZRangeByScoreWithScores(ctx, t.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]game.PresenceMember, 0, len(zs))
	for _, z := range zs {
		raw, _ := z.Member.(string)
		matchID, playerID, ok := parseMember(raw)
		if !ok {
			// Unparseable entries would be returned forever.
			t.rdb.ZRem(ctx, t.key, raw)
			continue
		}
		out = append(out, game.PresenceMember{
			MatchID:  matchID,
			PlayerID: playerID,
			LastSeen: time.UnixMilli(int64(z.Score)),
		})
	}
	return out, nil
}

// Forget drops the given players of a match.
func (t *Tracker) Forget(ctx context.Context, matchID string, playerIDs ...int64) error {
	if len(playerIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(playerIDs))
	for i, id := range playerIDs {
		members[i] = member(matchID, id)
	}
	return t.rdb.ZRem(ctx, t.key, members...).Err()
}
