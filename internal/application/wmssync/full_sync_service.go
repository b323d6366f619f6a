package wmssync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
)

// Full sync defaults
const (
	DefaultFullSyncPageSize  = 1000
	DefaultFullSyncBatchSize = 10
)

// FullSyncResult reports what a full sync enqueued.
type FullSyncResult struct {
	Variants     int  `json:"variants"`
	PushJobs     int  `json:"push_jobs"`
	PullStockJob bool `json:"pull_stock_job"`
}

// FullSyncService re-exports the whole catalog of a channel and pulls all
// stock afterwards. Every step is an idempotent upsert, so running it again
// is the way to recover from drift.
type FullSyncService struct {
	catalog   commerce.CatalogService
	queue     wms.JobQueue
	pageSize  int
	batchSize int
	logger    *zap.Logger
}

// FullSyncServiceConfig contains configuration for FullSyncService
type FullSyncServiceConfig struct {
	Catalog   commerce.CatalogService
	Queue     wms.JobQueue
	PageSize  int
	BatchSize int
	Logger    *zap.Logger
}

// NewFullSyncService creates a new FullSyncService
func NewFullSyncService(cfg FullSyncServiceConfig) *FullSyncService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultFullSyncPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultFullSyncBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &FullSyncService{
		catalog:   cfg.Catalog,
		queue:     cfg.Queue,
		pageSize:  cfg.PageSize,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}
}

// Trigger pages over all active variants of the channel, enqueues one
// push-variants job per batch and finally one pull-stock-levels job.
func (s *FullSyncService) Trigger(ctx context.Context, jc wms.JobContext) (*FullSyncResult, error) {
	var ids []uuid.UUID
	for offset := 0; ; offset += s.pageSize {
		page, total, err := s.catalog.ListActiveVariantIDs(ctx, jc.ChannelID, offset, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list active variants: %w", err)
		}
		ids = append(ids, page...)
		if len(page) == 0 || int64(len(ids)) >= total {
			break
		}
	}

	result := &FullSyncResult{Variants: len(ids)}
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		if _, err := s.queue.Enqueue(ctx, jc, wms.PushVariants{VariantIDs: ids[start:end]}); err != nil {
			return result, fmt.Errorf("enqueue push-variants: %w", err)
		}
		result.PushJobs++
	}
	if _, err := s.queue.Enqueue(ctx, jc, wms.PullStockLevels{}); err != nil {
		return result, fmt.Errorf("enqueue pull-stock-levels: %w", err)
	}
	result.PullStockJob = true

	s.logger.Info("Full sync enqueued",
		zap.String("channel", jc.ChannelToken),
		zap.Int("variants", result.Variants),
		zap.Int("push_jobs", result.PushJobs),
	)
	return result, nil
}
