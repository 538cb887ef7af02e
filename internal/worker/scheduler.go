// Package worker runs the periodic background jobs on a gocron scheduler.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler wraps a gocron scheduler. Jobs start immediately and never overlap
// with themselves; a run still in progress makes the next tick skip.
type Scheduler struct {
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers the jobs without starting them.
func NewScheduler(jobs ...Job) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, ctx: ctx, cancel: cancel}

	for _, j := range jobs {
		if j.Interval <= 0 {
			cancel()
			return nil, fmt.Errorf("job %s: interval must be positive", j.Name)
		}
		_, err := sched.NewJob(
			gocron.DurationJob(j.Interval),
			gocron.NewTask(s.runner(j)),
			gocron.WithName(j.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s: %w", j.Name, err)
		}
		log.WithFields(log.Fields{"job": j.Name, "interval": j.Interval}).Info("scheduled job")
	}
	return s, nil
}

func (s *Scheduler) runner(j Job) func() {
	return func() {
		// A run may not outlive its own interval by much.
		timeout := j.Interval * 4
		if timeout < 30*time.Second {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := j.Run(ctx); err != nil {
			log.WithError(err).WithField("job", j.Name).Error("job failed")
			return
		}
		log.WithFields(log.Fields{"job": j.Name, "took": time.Since(start)}).Debug("job finished")
	}
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}
