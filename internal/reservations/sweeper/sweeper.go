// Package sweeper periodically expires overdue reservations and returns
// units held by claims whose reservation is gone.
package sweeper

import (
	"context"
	"time"

	"ecovolt/pkg/logger"
	"ecovolt/pkg/metrics"
)

const (
	jobExpire    = "expire"
	jobReconcile = "reconcile"
)

// Jobs is the part of the reservation service the sweeper drives.
type Jobs interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ReconcileClaims(ctx context.Context) (int, error)
}

type Sweeper struct {
	jobs     Jobs
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func New(jobs Jobs, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		jobs:     jobs,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil || s.jobs == nil || s.interval <= 0 {
		return
	}

	s.log.Info("Reservation sweeper started", "interval", s.interval)
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reservation sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) {
	expired, err := s.jobs.ExpireDue(ctx, s.now().UTC())
	s.record(jobExpire, expired, err)

	released, err := s.jobs.ReconcileClaims(ctx)
	s.record(jobReconcile, released, err)
}

func (s *Sweeper) record(job string, n int, err error) {
	if err != nil {
		metrics.IncSweepRun(job, metrics.ResultError)
		s.log.Error("Sweep job failed", "job", job, "processed", n, "error", err)
	} else {
		metrics.IncSweepRun(job, metrics.ResultSuccess)
	}

	metrics.AddSwept(job, n)
	if n > 0 {
		s.log.Info("Sweep job processed reservations", "job", job, "processed", n)
	}
}
