package wms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies the variant of a SyncJob payload.
type JobKind string

const (
	JobKindPushVariants    JobKind = "push-variants"
	JobKindPullStockLevels JobKind = "pull-stock-levels"
	JobKindPushOrder       JobKind = "push-order"
)

// IsValid returns true if the kind is known
func (k JobKind) IsValid() bool {
	switch k {
	case JobKindPushVariants, JobKindPullStockLevels, JobKindPushOrder:
		return true
	}
	return false
}

// String returns the string representation
func (k JobKind) String() string {
	return string(k)
}

// DefaultMaxRetries is the retry budget of every sync job.
const DefaultMaxRetries = 10

// JobPayload is the sum type of sync job payloads. Only the types in this
// package implement it.
type JobPayload interface {
	Kind() JobKind
	isJobPayload()
}

// PushVariants exports variants to the WMS. Exactly one of VariantIDs or
// ProductID is set.
type PushVariants struct {
	VariantIDs []uuid.UUID `json:"variant_ids,omitempty"`
	ProductID  *uuid.UUID  `json:"product_id,omitempty"`
}

// PullStockLevels pulls free stock of all active WMS products.
type PullStockLevels struct{}

// PushOrder exports one placed order.
type PushOrder struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (PushVariants) Kind() JobKind    { return JobKindPushVariants }
func (PullStockLevels) Kind() JobKind { return JobKindPullStockLevels }
func (PushOrder) Kind() JobKind       { return JobKindPushOrder }

func (PushVariants) isJobPayload()    {}
func (PullStockLevels) isJobPayload() {}
func (PushOrder) isJobPayload()       {}

// Validate checks the PushVariants invariant.
func (p PushVariants) Validate() error {
	hasIDs := len(p.VariantIDs) > 0
	hasProduct := p.ProductID != nil && *p.ProductID != uuid.Nil
	if hasIDs == hasProduct {
		return fmt.Errorf("%w: push-variants needs either variant ids or a product id", ErrInvalidJob)
	}
	return nil
}

// JobContext is the serialized execution context captured at enqueue time.
// It is a snapshot: handlers re-resolve the channel and credentials from it.
type JobContext struct {
	ChannelID    uuid.UUID `json:"channel_id"`
	ChannelToken string    `json:"channel_token"`
	ActorID      string    `json:"actor_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}

// JobQueue accepts sync jobs for background execution.
type JobQueue interface {
	Enqueue(ctx context.Context, jc JobContext, payload JobPayload) (*SyncJob, error)
}

// JobHandler executes one attempt of a sync job.
type JobHandler interface {
	Handle(ctx context.Context, job *SyncJob) error
}

// JobStatus is the lifecycle state of a SyncJob
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusDropped   JobStatus = "DROPPED"
)

// SyncJob is one unit of work on the sync queue.
type SyncJob struct {
	ID          uuid.UUID
	Context     JobContext
	Payload     JobPayload
	Status      JobStatus
	RetryCount  int
	MaxRetries  int
	NextRetryAt time.Time
	EnqueuedAt  time.Time
	LastError   string
}

// NewSyncJob creates a pending job with the given retry budget.
// A non-positive budget falls back to DefaultMaxRetries.
func NewSyncJob(jc JobContext, payload JobPayload, maxRetries int) *SyncJob {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &SyncJob{
		ID:         uuid.New(),
		Context:    jc,
		Payload:    payload,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
	}
}

// Kind returns the payload kind, or an empty kind when the payload is missing.
func (j *SyncJob) Kind() JobKind {
	if j.Payload == nil {
		return ""
	}
	return j.Payload.Kind()
}

// IsReady reports whether the job may run at the given time.
func (j *SyncJob) IsReady(now time.Time) bool {
	return j.NextRetryAt.IsZero() || !now.Before(j.NextRetryAt)
}

// Start marks the job as running
func (j *SyncJob) Start() {
	j.Status = JobStatusRunning
}

// Complete marks the job as completed
func (j *SyncJob) Complete() {
	j.Status = JobStatusCompleted
	j.LastError = ""
}

// Fail records a failed attempt
func (j *SyncJob) Fail(err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.LastError = err.Error()
	}
}

// Drop marks the job as permanently abandoned
func (j *SyncJob) Drop() {
	j.Status = JobStatusDropped
}

// ShouldRetry returns true if the job has budget left
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry increments the retry count and computes the next attempt
// time with exponential backoff capped at maxDelay.
func (j *SyncJob) ScheduleRetry(baseDelay, maxDelay time.Duration) {
	j.RetryCount++
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if maxDelay > 0 && (delay > maxDelay || delay <= 0) {
		delay = maxDelay
	}
	j.NextRetryAt = time.Now().Add(delay)
	j.Status = JobStatusPending
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

type syncJobJSON struct {
	ID          uuid.UUID       `json:"id"`
	Kind        JobKind         `json:"kind"`
	Context     JobContext      `json:"context"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// MarshalJSON encodes the job with its kind as discriminator.
func (j *SyncJob) MarshalJSON() ([]byte, error) {
	if j.Payload == nil {
		return nil, fmt.Errorf("%w: job %s has no payload", ErrInvalidJob, j.ID)
	}
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(syncJobJSON{
		ID:          j.ID,
		Kind:        j.Payload.Kind(),
		Context:     j.Context,
		Payload:     payload,
		Status:      j.Status,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
		NextRetryAt: j.NextRetryAt,
		EnqueuedAt:  j.EnqueuedAt,
		LastError:   j.LastError,
	})
}

// UnmarshalJSON decodes a job, rejecting unknown kinds with ErrUnknownJobKind.
func (j *SyncJob) UnmarshalJSON(data []byte) error {
	var raw syncJobJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	var payload JobPayload
	switch raw.Kind {
	case JobKindPushVariants:
		var p PushVariants
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
		payload = p
	case JobKindPullStockLevels:
		payload = PullStockLevels{}
	case JobKindPushOrder:
		var p PushOrder
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
		payload = p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobKind, raw.Kind)
	}
	*j = SyncJob{
		ID:          raw.ID,
		Context:     raw.Context,
		Payload:     payload,
		Status:      raw.Status,
		RetryCount:  raw.RetryCount,
		MaxRetries:  raw.MaxRetries,
		NextRetryAt: raw.NextRetryAt,
		EnqueuedAt:  raw.EnqueuedAt,
		LastError:   raw.LastError,
	}
	return nil
}
