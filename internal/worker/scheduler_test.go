package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/config"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobsRepeatedly(t *testing.T) {
	var ok, failing int32
	s, err := NewScheduler(
		Job{Name: "ok", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&ok, 1)
			return nil
		}},
		Job{Name: "failing", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&failing, 1)
			return errors.New("boom")
		}},
	)
	require.NoError(t, err)
	s.Start()
	defer s.Shutdown()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ok) >= 3 && atomic.LoadInt32(&failing) >= 3
	}, 2*time.Second, 10*time.Millisecond, "a failing job keeps being scheduled")
}

func TestScheduler_ShutdownCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var cancelled int32
	s, err := NewScheduler(Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	}})
	require.NoError(t, err)
	s.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start immediately")
	}
	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestNewScheduler_RejectsZeroInterval(t *testing.T) {
	_, err := NewScheduler(Job{Name: "bad", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestJobs(t *testing.T) {
	cfg := &config.Config{
		MatchmakerIntervalSeconds:     2,
		AbandonedSweepIntervalSeconds: 30,
		QueueSweepIntervalMinutes:     5,
		PresenceSweepIntervalSeconds:  5,
		FeeRetryIntervalMinutes:       1,
		WagerTiers:                    []decimal.Decimal{decimal.Zero},
	}
	mm := game.NewMatchmaker(nil, nil, nil, nil, cfg.WagerTiers)
	sw := game.NewSweeper(nil, nil, nil, nil, nil, game.SweeperConfig{})

	names := func(jobs []Job) map[string]time.Duration {
		out := map[string]time.Duration{}
		for _, j := range jobs {
			out[j.Name] = j.Interval
		}
		return out
	}

	assert.Equal(t, map[string]time.Duration{
		"matchmaker":  2 * time.Second,
		"turn-sweep":  30 * time.Second,
		"stale-queue": 5 * time.Minute,
		"presence":    5 * time.Second,
	}, names(Jobs(cfg, mm, sw, nil)))

	withFees := names(Jobs(cfg, mm, sw, payout.NewCollector(nil, nil, nil, payout.CollectorConfig{})))
	assert.Equal(t, time.Minute, withFees["fee-withdrawals"])
}
