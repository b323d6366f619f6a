package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedHandler struct {
	mu       sync.Mutex
	calls    []*wms.SyncJob
	failures int
	err      error
	active   int
	maxSeen  int
	delay    time.Duration
	done     chan struct{}
}

func (h *scriptedHandler) Handle(_ context.Context, job *wms.SyncJob) error {
	h.mu.Lock()
	h.calls = append(h.calls, job)
	h.active++
	if h.active > h.maxSeen {
		h.maxSeen = h.active
	}
	fail := h.failures > 0
	if fail {
		h.failures--
	}
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active--
	h.mu.Unlock()
	if h.done != nil {
		h.done <- struct{}{}
	}
	if fail {
		return h.err
	}
	return nil
}

func (h *scriptedHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func testConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.BaseRetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 2 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func startDispatcher(t *testing.T, cfg DispatcherConfig, handler wms.JobHandler) *SyncDispatcher {
	t.Helper()
	return startDispatcherOn(t, cfg, NewMemoryJobStore(100), handler)
}

func startDispatcherOn(t *testing.T, cfg DispatcherConfig, store JobStore, handler wms.JobHandler) *SyncDispatcher {
	t.Helper()
	d, err := NewSyncDispatcher(cfg, store, handler, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func jobContext() wms.JobContext {
	return wms.JobContext{ChannelID: uuid.New(), ChannelToken: "tok"}
}

func TestDispatcherConfig_Validate(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Workers = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.MaxRetryDelay = cfg.BaseRetryDelay / 2
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestSyncDispatcher_EnqueueRequiresRunning(t *testing.T) {
	d, err := NewSyncDispatcher(testConfig(), NewMemoryJobStore(1), &scriptedHandler{}, nil, nil)
	require.NoError(t, err)

	_, err = d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncDispatcher_RunsJob(t *testing.T) {
	h := &scriptedHandler{done: make(chan struct{}, 1)}
	d := startDispatcher(t, testConfig(), h)

	orderID := uuid.New()
	job, err := d.Enqueue(context.Background(), jobContext(), wms.PushOrder{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, wms.DefaultMaxRetries, job.MaxRetries)

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not run")
	}

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Processed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, wms.PushOrder{OrderID: orderID}, h.calls[0].Payload)
}

func TestSyncDispatcher_RetriesThenSucceeds(t *testing.T) {
	h := &scriptedHandler{failures: 2, err: fmt.Errorf("%w: 502", wms.ErrPlatformUnavailable)}
	d := startDispatcher(t, testConfig(), h)

	_, err := d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Processed == 1
	}, 2*time.Second, 5*time.Millisecond)

	stats := d.Stats(context.Background())
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(2), stats.Retried)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, 3, h.callCount())
	assert.Equal(t, 2, h.calls[2].RetryCount)
}

func TestSyncDispatcher_DropsAfterBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	h := &scriptedHandler{failures: 100, err: errors.New("still broken")}
	d := startDispatcher(t, cfg, h)

	_, err := d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Dropped == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, h.callCount(), "first attempt plus two retries")
	assert.Zero(t, d.Stats(context.Background()).Pending)
}

func TestSyncDispatcher_DropsNonRetryableImmediately(t *testing.T) {
	h := &scriptedHandler{failures: 1, err: wms.ErrNotEnabled}
	d := startDispatcher(t, testConfig(), h)

	_, err := d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Dropped == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.callCount())
	assert.Zero(t, d.Stats(context.Background()).Retried)
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, *wms.SyncJob) error { panic("boom") }

func TestSyncDispatcher_RecoversPanics(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	d := startDispatcher(t, cfg, panickingHandler{})

	_, err := d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Dropped == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSyncDispatcher_SingleWorkerRunsSequentially(t *testing.T) {
	h := &scriptedHandler{delay: 5 * time.Millisecond}
	d := startDispatcher(t, testConfig(), h)

	for i := 0; i < 5; i++ {
		_, err := d.Enqueue(context.Background(), jobContext(), wms.PushOrder{OrderID: uuid.New()})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return d.Stats(context.Background()).Processed == 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.maxSeen)
}

func TestSyncDispatcher_StopIsIdempotent(t *testing.T) {
	d, err := NewSyncDispatcher(testConfig(), NewMemoryJobStore(1), &scriptedHandler{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	assert.False(t, d.Stats(context.Background()).Running)
}

// gatedHandler blocks every job until the gate is closed, like a slow
// remote call holding the only worker.
type gatedHandler struct {
	gate    chan struct{}
	started chan struct{}
	err     error
	calls   atomic.Int64
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{gate: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (h *gatedHandler) Handle(context.Context, *wms.SyncJob) error {
	n := h.calls.Add(1)
	select {
	case h.started <- struct{}{}:
	default:
	}
	<-h.gate
	if n == 1 && h.err != nil {
		return h.err
	}
	return nil
}

func TestSyncDispatcher_EnqueueWaitsForRoom(t *testing.T) {
	h := newGatedHandler()
	d := startDispatcherOn(t, testConfig(), NewMemoryJobStore(3), h)
	ctx := context.Background()

	_, err := d.Enqueue(ctx, jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)
	<-h.started

	const total = 20
	done := make(chan error, 1)
	go func() {
		for i := 0; i < total; i++ {
			if _, err := d.Enqueue(ctx, jobContext(), wms.PushOrder{OrderID: uuid.New()}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		t.Fatalf("enqueue returned while the worker was busy: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 3, d.Stats(ctx).Pending)

	close(h.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not resume after the worker drained the queue")
	}
	require.Eventually(t, func() bool {
		return d.Stats(ctx).Processed == total+1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSyncDispatcher_EnqueueGivesUpWithContext(t *testing.T) {
	h := newGatedHandler()
	d := startDispatcherOn(t, testConfig(), NewMemoryJobStore(1), h)
	t.Cleanup(func() { close(h.gate) })

	_, err := d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)
	<-h.started
	_, err = d.Enqueue(context.Background(), jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = d.Enqueue(ctx, jobContext(), wms.PullStockLevels{})
	assert.ErrorIs(t, err, ErrJobQueueFull)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncDispatcher_RetryIsKeptWhenQueueIsFull(t *testing.T) {
	h := newGatedHandler()
	h.err = fmt.Errorf("%w: 503", wms.ErrPlatformUnavailable)
	d := startDispatcherOn(t, testConfig(), NewMemoryJobStore(1), h)
	ctx := context.Background()

	_, err := d.Enqueue(ctx, jobContext(), wms.PushOrder{OrderID: uuid.New()})
	require.NoError(t, err)
	<-h.started
	// fills the store while the first job is failing
	_, err = d.Enqueue(ctx, jobContext(), wms.PullStockLevels{})
	require.NoError(t, err)

	close(h.gate)
	require.Eventually(t, func() bool {
		return d.Stats(ctx).Processed == 2
	}, 2*time.Second, 5*time.Millisecond)

	stats := d.Stats(ctx)
	assert.Equal(t, int64(1), stats.Retried)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, int64(3), h.calls.Load())
}
