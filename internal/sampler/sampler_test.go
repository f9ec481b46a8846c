package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"maker-fill-validator/internal/alerting"
	"maker-fill-validator/internal/config"
	"maker-fill-validator/internal/storage"
)

type stubSampleStore struct {
	pairs     []storage.TrackedPair
	listErr   error
	updateErr error
	stats     storage.StalenessStats

	updates []storage.TrackedPair
}

func (s *stubSampleStore) ListPairsForSampling(ctx context.Context, limit int) ([]storage.TrackedPair, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if limit < len(s.pairs) {
		return s.pairs[:limit], nil
	}
	return s.pairs, nil
}

func (s *stubSampleStore) UpdateSampledBalance(ctx context.Context, pair storage.TrackedPair, balance decimal.Decimal, sampledAt time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, pair)
	return nil
}

func (s *stubSampleStore) StaleCounts(ctx context.Context, olderThan time.Time) (storage.StalenessStats, error) {
	return s.stats, nil
}

type stubFetcher struct {
	balances map[common.Address]decimal.Decimal
	err      error
}

func (f *stubFetcher) FetchBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.balances[owner], nil
}

type stubNotifier struct {
	reports []alerting.HealthReport
}

func (n *stubNotifier) Notify(ctx context.Context, report alerting.HealthReport) error {
	n.reports = append(n.reports, report)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sampler.BatchSize = 100
	cfg.Validator.StalenessThreshold = 2 * time.Minute
	cfg.Alerting.Enabled = true
	cfg.Alerting.StaleLimit = 5
	return cfg
}

func pair(b byte) storage.TrackedPair {
	return storage.TrackedPair{
		TokenAddress: common.BytesToAddress([]byte{0xaa}),
		MakerAddress: common.BytesToAddress([]byte{b}),
	}
}

func TestCycleSamplesAllPairs(t *testing.T) {
	store := &stubSampleStore{pairs: []storage.TrackedPair{pair(1), pair(2), pair(3)}}
	balances := &stubFetcher{balances: map[common.Address]decimal.Decimal{
		pair(1).MakerAddress: decimal.NewFromInt(10),
		pair(2).MakerAddress: decimal.NewFromInt(20),
		pair(3).MakerAddress: decimal.NewFromInt(30),
	}}
	notifier := &stubNotifier{}

	s := New(testConfig(), nil, store, balances, notifier, zerolog.Nop())
	if err := s.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if len(store.updates) != 3 {
		t.Fatalf("expected 3 balance updates, got %d", len(store.updates))
	}
	if len(notifier.reports) != 0 {
		t.Fatal("healthy cycle should not alert")
	}
}

func TestCycleCountsFetchFailuresAndAlerts(t *testing.T) {
	store := &stubSampleStore{pairs: []storage.TrackedPair{pair(1), pair(2)}}
	balances := &stubFetcher{err: errors.New("rpc unavailable")}
	notifier := &stubNotifier{}

	s := New(testConfig(), nil, store, balances, notifier, zerolog.Nop())
	if err := s.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("fetch failures must not fail the cycle: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("no updates expected, got %d", len(store.updates))
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("expected one health alert, got %d", len(notifier.reports))
	}
	if notifier.reports[0].FailedFetches != 2 {
		t.Fatalf("expected 2 failed fetches in report, got %d", notifier.reports[0].FailedFetches)
	}
}

func TestCycleAlertsOnStaleLimit(t *testing.T) {
	store := &stubSampleStore{
		pairs: []storage.TrackedPair{pair(1)},
		stats: storage.StalenessStats{Total: 100, Unsampled: 2, Stale: 6},
	}
	balances := &stubFetcher{balances: map[common.Address]decimal.Decimal{
		pair(1).MakerAddress: decimal.NewFromInt(1),
	}}
	notifier := &stubNotifier{}

	s := New(testConfig(), nil, store, balances, notifier, zerolog.Nop())
	if err := s.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("stale count above limit should alert, got %d reports", len(notifier.reports))
	}
	if notifier.reports[0].Stale != 6 {
		t.Fatalf("report should carry the stale count, got %d", notifier.reports[0].Stale)
	}
}

func TestCycleListFailurePropagates(t *testing.T) {
	store := &stubSampleStore{listErr: errors.New("connection refused")}
	s := New(testConfig(), nil, store, &stubFetcher{}, nil, zerolog.Nop())
	if err := s.RunCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("list failure should surface")
	}
}

func TestRunWithoutScheduler(t *testing.T) {
	s := New(testConfig(), nil, &stubSampleStore{}, &stubFetcher{}, nil, zerolog.Nop())
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("run without scheduler should error")
	}
}
