package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
)

// JobStore holds pending jobs ordered by the time they become ready.
// Jobs are stored serialized, so every attempt decodes a fresh copy of its
// execution context.
type JobStore interface {
	// Push adds a job, ready at job.NextRetryAt (or now when unset).
	// It returns ErrJobQueueFull when the store is at capacity.
	Push(ctx context.Context, job *wms.SyncJob) error
	// Requeue puts back a job that was already admitted. It ignores the
	// capacity so a retry is never lost to a full queue.
	Requeue(ctx context.Context, job *wms.SyncJob) error
	// PopReady removes and returns the earliest job ready at now, or nil.
	PopReady(ctx context.Context, now time.Time) (*wms.SyncJob, error)
	// Len returns the number of pending jobs.
	Len(ctx context.Context) (int, error)
}

type storedJob struct {
	readyAt time.Time
	seq     uint64
	data    []byte
}

// MemoryJobStore is an in-process JobStore. Pending jobs are lost on
// restart.
type MemoryJobStore struct {
	mu       sync.Mutex
	jobs     []storedJob
	capacity int
	seq      uint64
}

// NewMemoryJobStore creates a store holding at most capacity new jobs.
// Zero or less means unbounded.
func NewMemoryJobStore(capacity int) *MemoryJobStore {
	return &MemoryJobStore{capacity: max(capacity, 0)}
}

// Push implements JobStore
func (s *MemoryJobStore) Push(_ context.Context, job *wms.SyncJob) error {
	return s.insert(job, true)
}

// Requeue implements JobStore
func (s *MemoryJobStore) Requeue(_ context.Context, job *wms.SyncJob) error {
	return s.insert(job, false)
}

func (s *MemoryJobStore) insert(job *wms.SyncJob, bounded bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bounded && s.capacity > 0 && len(s.jobs) >= s.capacity {
		return ErrJobQueueFull
	}
	s.seq++
	entry := storedJob{readyAt: readyAt(job), seq: s.seq, data: data}
	i := sort.Search(len(s.jobs), func(i int) bool {
		return s.jobs[i].readyAt.After(entry.readyAt)
	})
	s.jobs = append(s.jobs, storedJob{})
	copy(s.jobs[i+1:], s.jobs[i:])
	s.jobs[i] = entry
	return nil
}

// PopReady implements JobStore
func (s *MemoryJobStore) PopReady(_ context.Context, now time.Time) (*wms.SyncJob, error) {
	s.mu.Lock()
	if len(s.jobs) == 0 || s.jobs[0].readyAt.After(now) {
		s.mu.Unlock()
		return nil, nil
	}
	entry := s.jobs[0]
	s.jobs = s.jobs[1:]
	s.mu.Unlock()

	var job wms.SyncJob
	if err := json.Unmarshal(entry.data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Len implements JobStore
func (s *MemoryJobStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}

func readyAt(job *wms.SyncJob) time.Time {
	if job.NextRetryAt.IsZero() {
		return job.EnqueuedAt
	}
	return job.NextRetryAt
}
