package service

import (
	"context"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/metrics"

	"github.com/rs/zerolog"
)

// ExpiryJobName labels the sweeper in metrics and logs.
const ExpiryJobName = "payout_expiry"

// stalePayoutExpirer is the slice of the payout engine the sweeper drives.
type stalePayoutExpirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpirySweeperParams configure the pending-payout sweeper.
type ExpirySweeperParams struct {
	Payouts   stalePayoutExpirer
	Lock      ports.JobLock // optional; nil runs on every instance
	Metrics   *metrics.LedgerMetrics
	Log       zerolog.Logger
	OlderThan time.Duration
	Interval  time.Duration
}

// ExpirySweeper periodically rejects pending payouts that were never reviewed.
type ExpirySweeper struct {
	payouts   stalePayoutExpirer
	lock      ports.JobLock
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
	olderThan time.Duration
	interval  time.Duration
}

// NewExpirySweeper builds a sweeper. Expiry must be enabled.
func NewExpirySweeper(p ExpirySweeperParams) (*ExpirySweeper, error) {
	if p.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if p.OlderThan <= 0 {
		return nil, fmt.Errorf("pending expiry must be positive")
	}
	if p.Interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	return &ExpirySweeper{
		payouts:   p.Payouts,
		lock:      p.Lock,
		metrics:   p.Metrics,
		log:       p.Log.With().Str("job", ExpiryJobName).Logger(),
		olderThan: p.OlderThan,
		interval:  p.Interval,
	}, nil
}

// Run sweeps immediately and then on every tick until ctx is canceled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and returns the number of payouts expired.
func (s *ExpirySweeper) RunOnce(ctx context.Context) int {
	if s.lock != nil {
		locked, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("expiry sweep: lock acquire failed")
			s.metrics.ObserveJob(ExpiryJobName, 0, err)
			return 0
		}
		if !locked {
			s.log.Debug().Msg("expiry sweep: another instance holds the lock")
			return 0
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.log.Warn().Err(err).Msg("expiry sweep: lock release failed")
			}
		}()
	}

	start := time.Now()
	expired, err := s.payouts.ExpireStalePending(ctx, s.olderThan)
	duration := time.Since(start)
	s.metrics.ObserveJob(ExpiryJobName, duration, err)

	if err != nil {
		s.log.Error().Err(err).Int("expired", expired).Dur("duration", duration).Msg("expiry sweep failed")
		return expired
	}
	s.log.Debug().Int("expired", expired).Dur("duration", duration).Msg("expiry sweep complete")
	return expired
}
