// Package scheduler runs the fixed-size worker pool that polls the queue
// store, claims due items and hands them to the pipeline engine. Claiming is
// the only concurrency control; a worker that loses a race simply polls again.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/pipeline"
)

const defaultPollInterval = 2 * time.Second

// Consecutive claim failures before the scheduler reports itself unhealthy.
const unhealthyAfterFailures = 5

// Config sizes the pool.
type Config struct {
	Workers      int
	PollInterval time.Duration
}

// Scheduler owns the worker goroutines.
type Scheduler struct {
	queue        domain.QueueRepository
	engine       *pipeline.Engine
	workers      int
	pollInterval time.Duration
	metrics      *Metrics
	logger       zerolog.Logger

	claimFailures atomic.Int64
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New creates a scheduler. Metrics may be nil when scraping is not wired.
func New(queue domain.QueueRepository, engine *pipeline.Engine, cfg Config, metrics *Metrics, logger zerolog.Logger) *Scheduler {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Scheduler{
		queue:        queue,
		engine:       engine,
		workers:      workers,
		pollInterval: pollInterval,
		metrics:      metrics,
		logger:       logger,
	}
}

// Start launches the pool. It returns immediately; use Stop to drain.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info().
		Int("workers", s.workers).
		Dur("poll_interval", s.pollInterval).
		Msg("scheduler: starting")

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.runWorker(ctx, id)
		}(i)
	}
}

// Stop cancels the pool and waits for in-flight steps to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("scheduler: stopped")
}

// Healthy reports whether the queue store has been reachable recently.
func (s *Scheduler) Healthy() bool {
	return s.claimFailures.Load() < unhealthyAfterFailures
}

func (s *Scheduler) runWorker(ctx context.Context, id int) {
	logger := s.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := s.queue.ClaimNextDue(ctx, time.Now().UTC())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Nothing due, or another worker won the race.
				s.sleep(ctx)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			// Queue store unavailable. Loud, never swallowed.
			s.claimFailures.Add(1)
			if s.metrics != nil {
				s.metrics.ClaimErrorsTotal.Inc()
			}
			logger.Error().Err(err).Msg("scheduler: claim failed, queue store unavailable")
			s.sleep(ctx)
			continue
		}
		s.claimFailures.Store(0)
		if s.metrics != nil {
			s.metrics.ClaimsTotal.Inc()
		}

		logger.Debug().
			Str("item_id", item.ID).
			Str("order_id", item.OrderID).
			Str("step", item.ProcessingStep).
			Int("attempt", item.Attempts).
			Msg("scheduler: claimed item")

		start := time.Now()
		if err := s.engine.ExecuteStep(ctx, item); err != nil {
			if s.metrics != nil {
				s.metrics.StepErrorsTotal.Inc()
			}
			logger.Error().Err(err).
				Str("item_id", item.ID).
				Str("order_id", item.OrderID).
				Msg("scheduler: step execution failed")
		}
		if s.metrics != nil {
			s.metrics.StepDurationSecs.Observe(time.Since(start).Seconds())
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.pollInterval):
	}
}
