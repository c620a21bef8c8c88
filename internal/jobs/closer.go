package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Transitioner closes competitions whose end date has passed
type Transitioner interface {
	CheckTransitions(ctx context.Context) (int, error)
}

// ClosingSweeper periodically freezes finished competitions and assigns
// their winners. It is the external trigger of the lifecycle transition check.
type ClosingSweeper struct {
	target    Transitioner
	scheduler gocron.Scheduler
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration
	running   atomic.Bool

	// Metrics
	sweeps atomic.Int64
	closed atomic.Int64
	errors atomic.Int64
}

// SweeperConfig holds configuration for the closing sweeper
type SweeperConfig struct {
	Interval time.Duration // Default: 1m
	Timeout  time.Duration // Default: Interval
}

// NewClosingSweeper creates a closing sweeper driven by clock
func NewClosingSweeper(target Transitioner, clock clockwork.Clock, config SweeperConfig, logger *zap.Logger) (*ClosingSweeper, error) {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &ClosingSweeper{
		target:    target,
		scheduler: scheduler,
		logger:    logger,
		interval:  config.Interval,
		timeout:   config.Timeout,
	}, nil
}

// Start schedules the sweep. A sweep still running when the next one is due
// delays it instead of overlapping.
func (s *ClosingSweeper) Start() error {
	if s.running.Load() {
		return fmt.Errorf("sweeper already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("close-finished-competitions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.scheduler.Start()
	s.running.Store(true)
	s.logger.Info("closing sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop waits for a running sweep and stops the scheduler
func (s *ClosingSweeper) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return err
	}
	s.logger.Info("closing sweeper stopped", zap.Any("metrics", s.GetMetrics()))
	return nil
}

// RunOnce performs a single sweep on the calling goroutine
func (s *ClosingSweeper) RunOnce(ctx context.Context) (int, error) {
	s.sweeps.Add(1)
	n, err := s.target.CheckTransitions(ctx)
	s.closed.Add(int64(n))
	if err != nil {
		s.errors.Add(1)
	}
	return n, err
}

func (s *ClosingSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("closing sweep failed", zap.Int("closed", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("closing sweep finished", zap.Int("closed", n))
	}
}

// GetMetrics returns current sweeper metrics
func (s *ClosingSweeper) GetMetrics() map[string]int64 {
	return map[string]int64{
		"sweeps": s.sweeps.Load(),
		"closed": s.closed.Load(),
		"errors": s.errors.Load(),
	}
}
