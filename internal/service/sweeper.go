package service

import (
	"context"
	"time"

	"payment-status-relay/internal/core/ports"

	"github.com/rs/zerolog"
)

// Sweeper drives the periodic stale-pending re-verification on a fixed
// timer. With a SweepLease it coordinates across relay instances; with a nil
// lease every tick runs locally.
type Sweeper struct {
	reconciler ports.ReconciliationService
	lease      ports.SweepLease
	interval   time.Duration
	leaseTTL   time.Duration
	log        zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	reconciler ports.ReconciliationService,
	lease ports.SweepLease,
	interval time.Duration,
	leaseTTL time.Duration,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		reconciler: reconciler,
		lease:      lease,
		interval:   interval,
		leaseTTL:   leaseTTL,
		log:        log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().
		Dur("interval", s.interval).
		Msg("sweep loop started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweep loop stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.lease != nil {
		held, err := s.lease.Acquire(ctx, s.leaseTTL)
		if err != nil {
			s.log.Warn().Err(err).Msg("sweep lease check failed, running cycle anyway")
		} else if !held {
			s.log.Debug().Msg("sweep lease held elsewhere, skipping cycle")
			return
		}
	}

	stats, err := s.reconciler.SweepOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep cycle failed")
		return
	}
	if stats.Scanned > 0 {
		s.log.Info().
			Int("scanned", stats.Scanned).
			Int("updated", stats.Updated).
			Int("failed", stats.Failed).
			Msg("sweep cycle complete")
	}
}
