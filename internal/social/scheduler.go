package social

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs fetch cycles at a fixed interval, starting with one on
// startup. Trigger requests an immediate extra cycle without disturbing the
// ticker cadence.
type Scheduler struct {
	fetcher  *Fetcher
	interval time.Duration
	trigger  chan struct{}
}

// NewScheduler creates a Scheduler around the given Fetcher.
func NewScheduler(f *Fetcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		fetcher:  f,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate fetch cycle. Requests arriving while one is
// already queued coalesce into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, executing one cycle immediately and
// then one per interval or trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "social.scheduler"))
	log.Info("starting fetch scheduler", zap.Duration("interval", s.interval))

	s.runOnce(ctx, log)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("fetch scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, log)
		case <-s.trigger:
			s.runOnce(ctx, log)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, log *zap.Logger) {
	if _, err := s.fetcher.RunCycle(ctx); err != nil {
		log.Warn("fetch cycle error", zap.Error(err))
	}
}
