package worker

import (
	"context"
	"time"

	"github.com/silostrike/backend/internal/config"
	"github.com/silostrike/backend/internal/game"
	"github.com/silostrike/backend/internal/payout"
)

// Jobs builds the service's periodic jobs from config. collector may be nil.
func Jobs(cfg *config.Config, mm *game.Matchmaker, sweeper *game.Sweeper, collector *payout.Collector) []Job {
	jobs := []Job{
		{
			Name:     "matchmaker",
			Interval: seconds(cfg.MatchmakerIntervalSeconds),
			Run:      mm.PairWaiting,
		},
		{
			Name:     "turn-sweep",
			Interval: seconds(cfg.AbandonedSweepIntervalSeconds),
			Run:      sweeper.RunTurnSweep,
		},
		{
			Name:     "stale-queue",
			Interval: time.Duration(cfg.QueueSweepIntervalMinutes) * time.Minute,
			Run:      discardCount(sweeper.SweepStaleQueue),
		},
		{
			Name:     "presence",
			Interval: seconds(cfg.PresenceSweepIntervalSeconds),
			Run:      discardCount(sweeper.SweepDisconnects),
		},
	}
	if collector != nil {
		jobs = append(jobs, Job{
			Name:     "fee-withdrawals",
			Interval: time.Duration(cfg.FeeRetryIntervalMinutes) * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := collector.Collect(ctx)
				return err
			},
		})
	}
	return jobs
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func discardCount(fn func(context.Context) (int, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}
