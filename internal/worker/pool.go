package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a pool that has been shut down
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task is a unit of scoring work. The context is the submitter's.
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	task Task
	done func(error)
}

// WorkerPool runs scoring tasks on a fixed set of goroutines
type WorkerPool struct {
	jobs        chan job
	workerCount int
	logger      *zap.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
	metrics     *PoolMetrics
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, logger *zap.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		jobs:        make(chan job, queueSize),
		workerCount: workerCount,
		logger:      logger,
		metrics:     &PoolMetrics{},
	}
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info("starting scoring worker pool",
		zap.Int("workers", wp.workerCount), zap.Int("queue_size", cap(wp.jobs)))

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for j := range wp.jobs {
		j.done(wp.process(id, j))
	}
}

// process runs one task with panic recovery
func (wp *WorkerPool) process(workerID int, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("scoring task panicked", zap.Int("worker", workerID), zap.Any("panic", r))
			wp.metrics.incrementFailed()
			err = fmt.Errorf("scoring task panicked: %v", r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		wp.metrics.incrementFailed()
		return err
	}

	startTime := time.Now()
	err = j.task(j.ctx)
	if err != nil {
		wp.metrics.incrementFailed()
		return err
	}
	wp.metrics.recordSuccess(time.Since(startTime))
	return nil
}

// Submit queues a task and returns once it is accepted. Tasks are never
// dropped: when the queue is full Submit records backpressure and blocks until
// a slot frees up or ctx is done. done is called exactly once with the task's
// outcome, and only if Submit returned nil.
func (wp *WorkerPool) Submit(ctx context.Context, task Task, done func(error)) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	j := job{ctx: ctx, task: task, done: done}
	select {
	case wp.jobs <- j:
		return nil
	default:
	}

	wp.metrics.incrementBackpressure()
	select {
	case wp.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return nil
	}
	wp.closed = true
	close(wp.jobs)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logMetrics()
		return nil
	case <-time.After(timeout):
		wp.logger.Warn("worker pool shutdown timed out", zap.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return map[string]interface{}{
		"processed":           wp.metrics.processed,
		"failed":              wp.metrics.failed,
		"backpressure_events": wp.metrics.backpressure,
		"avg_processing_time": avgProcessing.String(),
		"queue_utilization":   fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

func (wp *WorkerPool) logMetrics() {
	m := wp.GetMetrics()
	wp.logger.Info("scoring worker pool stopped",
		zap.Any("processed", m["processed"]),
		zap.Any("failed", m["failed"]),
		zap.Any("backpressure_events", m["backpressure_events"]),
		zap.Any("avg_processing_time", m["avg_processing_time"]),
	)
}

// Metrics helper methods
func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
