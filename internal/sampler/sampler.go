// Package sampler implements the producer side of the maker balance cache:
// it periodically refreshes the balance and sample timestamp of registered
// (token, maker) pairs. It never inserts or deletes rows; registration is
// the validator's job.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"maker-fill-validator/internal/alerting"
	"maker-fill-validator/internal/config"
	"maker-fill-validator/internal/fetcher"
	"maker-fill-validator/internal/scheduler"
	"maker-fill-validator/internal/storage"
)

// Sampler refreshes cached balances on a fixed cadence.
type Sampler struct {
	scheduler *scheduler.Scheduler
	store     storage.SampleStore
	fetcher   fetcher.BalanceFetcher
	notifier  alerting.Notifier
	logger    zerolog.Logger

	batchSize  int
	threshold  time.Duration
	staleLimit int64
	alertsOn   bool
	locker     storage.AdvisoryLocker
	lockKey    int64
	now        func() time.Time
}

// New constructs the sampling service.
func New(cfg *config.Config, sched *scheduler.Scheduler, store storage.SampleStore, balances fetcher.BalanceFetcher, notifier alerting.Notifier, logger zerolog.Logger) *Sampler {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Sampler{
		scheduler:  sched,
		store:      store,
		fetcher:    balances,
		notifier:   notifier,
		logger:     logger.With().Str("component", "sampler").Logger(),
		batchSize:  cfg.Sampler.BatchSize,
		threshold:  cfg.Validator.StalenessThreshold,
		staleLimit: cfg.Alerting.StaleLimit,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Sampler.AdvisoryLockKey,
		now:        time.Now,
	}
}

// Run begins the periodic sampling loop.
func (s *Sampler) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

// RunCycle refreshes one batch of pairs, oldest samples first. Per-pair fetch
// failures are counted and skipped so one flaky token cannot stall the rest.
func (s *Sampler) RunCycle(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	pairs, err := s.store.ListPairsForSampling(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("list pairs for sampling: %w", err)
	}

	sampled := 0
	failed := 0
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		balance, err := s.fetcher.FetchBalance(ctx, pair.TokenAddress, pair.MakerAddress)
		if err != nil {
			failed++
			s.logger.Warn().Err(err).
				Str("token", pair.TokenAddress.Hex()).
				Str("maker", pair.MakerAddress.Hex()).
				Msg("balance fetch failed")
			continue
		}

		if err := s.store.UpdateSampledBalance(ctx, pair, balance, s.now().UTC()); err != nil {
			failed++
			s.logger.Error().Err(err).
				Str("token", pair.TokenAddress.Hex()).
				Str("maker", pair.MakerAddress.Hex()).
				Msg("failed to persist sampled balance")
			continue
		}
		sampled++
	}

	s.logger.Info().Time("tick", tick).
		Int("sampled", sampled).
		Int("failed", failed).
		Msg("sampling cycle complete")

	s.reportHealth(ctx, tick, sampled, failed)
	return nil
}

// reportHealth fires an operator alert when a cycle saw failures or the
// stale-row count crossed the configured limit. Alerting problems are logged
// and swallowed; they must not fail the cycle.
func (s *Sampler) reportHealth(ctx context.Context, tick time.Time, sampled, failed int) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	stats, err := s.store.StaleCounts(ctx, s.now().UTC().Add(-s.threshold))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute staleness stats")
		return
	}

	if failed == 0 && stats.Stale <= s.staleLimit {
		return
	}

	report := alerting.HealthReport{
		Tick:          tick,
		SampledPairs:  sampled,
		FailedFetches: failed,
		TrackedPairs:  stats.Total,
		Unsampled:     stats.Unsampled,
		Stale:         stats.Stale,
		StaleLimit:    s.staleLimit,
		Threshold:     s.threshold,
	}
	if err := s.notifier.Notify(ctx, report); err != nil {
		s.logger.Error().Err(err).Time("tick", tick).Msg("failed to dispatch health alert")
	}
}

func (s *Sampler) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
