// Package outbox implements the Outbox → Search Job Pipeline (C7): two
// independent periodic sweeps around domain.Store's claim-lock SQL, plus a
// best-effort notify-after-commit wake-up. Grounded on spec.md §4.7.
package outbox

import (
	"context"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mruntime"
)

// Store is the subset of domain.Store this service needs.
type Store interface {
	SweepOutbox(ctx context.Context, batchSize int, now time.Time) (domain.OutboxSweepResult, error)
	SweepSearchJobs(ctx context.Context, batchSize, maxAttempts int, now time.Time) (domain.JobSweepResult, error)
}

// Config tunes the two sweeps.
type Config struct {
	ProducerInterval time.Duration
	ConsumerInterval time.Duration
	BatchSize        int
	MaxAttempts      int
}

// DefaultConfig returns spec.md §4.7's suggested cadence.
func DefaultConfig() Config {
	return Config{
		ProducerInterval: 5 * time.Second,
		ConsumerInterval: 5 * time.Second,
		BatchSize:        100,
		MaxAttempts:      domain.MaxJobAttempts,
	}
}

// Service runs the outbox producer and search-job consumer sweeps.
type Service struct {
	store    Store
	notifier *Notifier
	logger   mlog.Logger
	cfg      Config
}

// NewService builds an outbox Service. notifier may be nil.
func NewService(store Store, notifier *Notifier, logger mlog.Logger, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = domain.MaxJobAttempts
	}

	return &Service{store: store, notifier: notifier, logger: logger, cfg: cfg}
}

// Run blocks, driving both sweeps on their own tickers until ctx is done.
func (s *Service) Run(ctx context.Context) {
	go mruntime.RunTicker(ctx, s.logger, "outbox.producer", s.cfg.ProducerInterval, s.sweepOutbox)
	mruntime.RunTicker(ctx, s.logger, "outbox.consumer", s.cfg.ConsumerInterval, s.sweepSearchJobs)
}

func (s *Service) sweepOutbox(ctx context.Context) error {
	result, err := s.store.SweepOutbox(ctx, s.cfg.BatchSize, time.Now())
	if err != nil {
		return err
	}

	if result.EnqueuedCount > 0 {
		s.logger.Infof("outbox producer: claimed=%d enqueued=%d requeued=%d",
			result.ClaimedCount, result.EnqueuedCount, result.RequeuedCount)

		if s.notifier != nil {
			s.notifier.Notify(ctx)
		}
	}

	return nil
}

func (s *Service) sweepSearchJobs(ctx context.Context) error {
	result, err := s.store.SweepSearchJobs(ctx, s.cfg.BatchSize, s.cfg.MaxAttempts, time.Now())
	if err != nil {
		return err
	}

	if result.ClaimedCount > 0 {
		s.logger.Infof("search job consumer: claimed=%d completed=%d failed=%d dead_letter=%d",
			result.ClaimedCount, result.CompletedCount, result.FailedCount, result.DeadLetterCount)
	}

	return nil
}

// SweepOnce runs both sweeps a single time, for handlers or tests that want
// synchronous control instead of the ticker loop.
func (s *Service) SweepOnce(ctx context.Context) (domain.OutboxSweepResult, domain.JobSweepResult, error) {
	now := time.Now()

	outboxResult, err := s.store.SweepOutbox(ctx, s.cfg.BatchSize, now)
	if err != nil {
		return domain.OutboxSweepResult{}, domain.JobSweepResult{}, err
	}

	jobResult, err := s.store.SweepSearchJobs(ctx, s.cfg.BatchSize, s.cfg.MaxAttempts, now)
	if err != nil {
		return outboxResult, domain.JobSweepResult{}, err
	}

	return outboxResult, jobResult, nil
}
