// Package scheduler runs sync jobs in the background with bounded retries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DispatcherConfig holds configuration for the sync dispatcher
type DispatcherConfig struct {
	// Name identifies the queue in logs
	Name string
	// Workers is the number of concurrent job streams; 1 runs jobs strictly one after another
	Workers int
	// MaxRetries is the retry budget given to enqueued jobs
	MaxRetries int
	// BaseRetryDelay is the first backoff delay, doubled per attempt
	BaseRetryDelay time.Duration
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay time.Duration
	// JobTimeout bounds one attempt; zero means no bound
	JobTimeout time.Duration
	// PollInterval is how often an idle worker checks for delayed jobs
	PollInterval time.Duration
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Name:           "wms-sync",
		Workers:        1,
		MaxRetries:     wms.DefaultMaxRetries,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  30 * time.Minute,
		JobTimeout:     5 * time.Minute,
		PollInterval:   500 * time.Millisecond,
	}
}

// Validate validates the configuration
func (c *DispatcherConfig) Validate() error {
	if c.Workers <= 0 || c.MaxRetries < 0 || c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.BaseRetryDelay <= 0 || c.MaxRetryDelay < c.BaseRetryDelay {
		return ErrInvalidConfig
	}
	return nil
}

// DispatcherStats is a snapshot of dispatcher counters
type DispatcherStats struct {
	Queue     string `json:"queue"`
	Running   bool   `json:"running"`
	Pending   int    `json:"pending"`
	Enqueued  int64  `json:"enqueued"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Retried   int64  `json:"retried"`
	Dropped   int64  `json:"dropped"`
}

// SyncDispatcher pulls jobs from a JobStore and hands them to the handler.
// A failed job goes back to the store with exponential backoff until its
// retry budget is spent, then it is dropped and reported at error level.
type SyncDispatcher struct {
	config  DispatcherConfig
	store   JobStore
	handler wms.JobHandler
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger

	wake      chan struct{}
	drained   chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	enqueued  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

var _ wms.JobQueue = (*SyncDispatcher)(nil)

// NewSyncDispatcher creates a dispatcher. metrics may be nil.
func NewSyncDispatcher(config DispatcherConfig, store JobStore, handler wms.JobHandler, metrics *telemetry.SyncMetrics, logger *zap.Logger) (*SyncDispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopSyncMetrics()
	}
	return &SyncDispatcher{
		config:  config,
		store:   store,
		handler: handler,
		metrics: metrics,
		logger:  logger.Named("dispatcher").With(zap.String("queue", config.Name)),
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}, 1),
	}, nil
}

// Start starts the workers
func (d *SyncDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isRunning {
		return nil
	}
	d.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info("Sync dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Int("max_retries", d.config.MaxRetries),
	)
	return nil
}

// Stop stops the workers. A job already running finishes its attempt.
func (d *SyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.cancel()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Sync dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Sync dispatcher stop timed out")
		return ctx.Err()
	}
}

// Enqueue stores a new job with the configured retry budget. When the store
// is capped and full, it blocks until a worker takes a job.
func (d *SyncDispatcher) Enqueue(ctx context.Context, jc wms.JobContext, payload wms.JobPayload) (*wms.SyncJob, error) {
	d.mu.Lock()
	running := d.isRunning
	d.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", wms.ErrInvalidJob)
	}

	job := wms.NewSyncJob(jc, payload, d.config.MaxRetries)
	if err := d.push(ctx, job); err != nil {
		return nil, err
	}
	d.enqueued.Add(1)
	d.signal()

	d.logger.Debug("Sync job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("job_kind", job.Kind().String()),
		zap.String("channel", jc.ChannelID.String()),
	)
	return job, nil
}

// push waits for room while the store is at capacity. It gives up when ctx
// ends or the dispatcher stops, since nothing drains the queue then.
func (d *SyncDispatcher) push(ctx context.Context, job *wms.SyncJob) error {
	var ticker *time.Ticker
	for {
		err := d.store.Push(ctx, job)
		if !errors.Is(err, ErrJobQueueFull) {
			return err
		}
		if ticker == nil {
			ticker = time.NewTicker(d.config.PollInterval)
			defer ticker.Stop()
			d.logger.Debug("Sync queue full, waiting for room",
				zap.String("job_kind", job.Kind().String()))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrJobQueueFull, ctx.Err())
		case <-d.drained:
		case <-ticker.C:
		}
		d.mu.Lock()
		running := d.isRunning
		d.mu.Unlock()
		if !running {
			return ErrSchedulerNotRunning
		}
	}
}

func (d *SyncDispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *SyncDispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil && d.runNext(ctx, workerID) {
		}
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-ticker.C:
		}
	}
}

// runNext runs one ready job and reports whether one was found.
func (d *SyncDispatcher) runNext(ctx context.Context, workerID int) bool {
	job, err := d.store.PopReady(ctx, time.Now())
	if err != nil {
		if errors.Is(err, wms.ErrUnknownJobKind) || errors.Is(err, wms.ErrInvalidJob) {
			d.dropped.Add(1)
			d.logger.Error("Dropping undecodable sync job", zap.Error(err))
			return true
		}
		if ctx.Err() == nil {
			d.logger.Error("Failed to read sync queue", zap.Error(err))
		}
		return false
	}
	if job == nil {
		return false
	}
	select {
	case d.drained <- struct{}{}:
	default:
	}
	d.process(ctx, job, workerID)
	return true
}

func (d *SyncDispatcher) process(ctx context.Context, job *wms.SyncJob, workerID int) {
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_kind", job.Kind().String()),
		zap.String("channel", job.Context.ChannelID.String()),
		zap.Int("attempt", job.RetryCount+1),
	}

	// Attempts are not cancelled by Stop; only the optional timeout bounds them.
	jobCtx := context.WithoutCancel(ctx)
	if d.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, d.config.JobTimeout)
		defer cancel()
	}

	job.Start()
	started := time.Now()
	err := d.runHandler(jobCtx, job)
	took := time.Since(started)
	kind := job.Kind().String()

	if err == nil {
		job.Complete()
		d.processed.Add(1)
		d.metrics.JobFinished(ctx, kind, telemetry.OutcomeSuccess, took)
		d.logger.Debug("Sync job completed", append(fields, zap.Duration("took", took))...)
		return
	}

	job.Fail(err)
	d.failed.Add(1)

	if wms.IsRetryable(err) && job.ShouldRetry() {
		job.ScheduleRetry(d.config.BaseRetryDelay, d.config.MaxRetryDelay)
		pushErr := d.store.Requeue(context.WithoutCancel(ctx), job)
		if pushErr == nil {
			d.retried.Add(1)
			d.metrics.JobFinished(ctx, kind, telemetry.OutcomeRetry, took)
			d.logger.Warn("Sync job failed, retry scheduled", append(fields,
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", job.NextRetryAt),
				zap.Error(err),
			)...)
			return
		}
		err = fmt.Errorf("%w (requeue failed: %v)", err, pushErr)
	}

	job.Drop()
	d.dropped.Add(1)
	d.metrics.JobFinished(ctx, kind, telemetry.OutcomeFailed, took)
	d.logger.Error("Sync job dropped", append(fields,
		zap.Int("max_retries", job.MaxRetries),
		zap.Bool("retryable", wms.IsRetryable(err)),
		zap.Error(err),
	)...)
}

// runHandler runs one attempt with the job kind set as a profiling label.
func (d *SyncDispatcher) runHandler(ctx context.Context, job *wms.SyncJob) (err error) {
	telemetry.WithJobLabels(ctx, d.config.Name, job.Kind().String(), func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job handler panicked: %v", r)
			}
		}()
		err = d.handler.Handle(ctx, job)
	})
	return err
}

// Stats returns a snapshot of the dispatcher counters
func (d *SyncDispatcher) Stats(ctx context.Context) DispatcherStats {
	d.mu.Lock()
	running := d.isRunning
	d.mu.Unlock()

	pending, err := d.store.Len(ctx)
	if err != nil {
		d.logger.Warn("Failed to read queue length", zap.Error(err))
	} else {
		d.metrics.QueueDepth(ctx, pending)
	}
	return DispatcherStats{
		Queue:     d.config.Name,
		Running:   running,
		Pending:   pending,
		Enqueued:  d.enqueued.Load(),
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Retried:   d.retried.Load(),
		Dropped:   d.dropped.Load(),
	}
}
