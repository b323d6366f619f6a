package wmssync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
)

// SyncJobHandler executes sync jobs for the dispatcher. The channel,
// credentials and client are resolved again for every attempt.
type SyncJobHandler struct {
	resolver tenantResolver
	catalog  *CatalogExporter
	stock    *StockReconciler
	orders   *OrderExporter
	logger   *zap.Logger
}

var _ wms.JobHandler = (*SyncJobHandler)(nil)

// SyncJobHandlerConfig contains configuration for SyncJobHandler
type SyncJobHandlerConfig struct {
	Channels commerce.ChannelResolver
	Configs  wms.TenantConfigRepository
	Clients  wms.ClientFactory
	Catalog  *CatalogExporter
	Stock    *StockReconciler
	Orders   *OrderExporter
	Logger   *zap.Logger
}

// NewSyncJobHandler creates a new SyncJobHandler
func NewSyncJobHandler(cfg SyncJobHandlerConfig) *SyncJobHandler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SyncJobHandler{
		resolver: tenantResolver{
			channels: cfg.Channels,
			configs:  cfg.Configs,
			clients:  cfg.Clients,
		},
		catalog: cfg.Catalog,
		stock:   cfg.Stock,
		orders:  cfg.Orders,
		logger:  cfg.Logger,
	}
}

// Handle runs one attempt of a job. A channel without an active integration
// makes the job a no-op.
func (h *SyncJobHandler) Handle(ctx context.Context, job *wms.SyncJob) (err error) {
	if !job.Kind().IsValid() {
		return fmt.Errorf("%w: %q", wms.ErrUnknownJobKind, job.Kind())
	}
	ctx, span := telemetry.StartSpan(ctx, "wmssync.job "+job.Kind().String(),
		telemetry.AttrJobType.String(job.Kind().String()),
		telemetry.AttrChannelID.String(job.Context.ChannelID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	t, err := h.resolver.byChannelID(ctx, job.Context.ChannelID)
	if err != nil {
		if wms.IsConfigurationError(err) {
			h.logger.Debug("WMS integration not active, skipping job",
				zap.String("job_id", job.ID.String()),
				zap.String("job_kind", job.Kind().String()),
				zap.String("channel", job.Context.ChannelToken),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	switch p := job.Payload.(type) {
	case wms.PushVariants:
		_, err = h.catalog.PushVariants(ctx, t, p)
	case wms.PullStockLevels:
		_, err = h.stock.PullStockLevels(ctx, t)
	case wms.PushOrder:
		_, err = h.orders.PushOrder(ctx, t, p.OrderID)
	default:
		err = fmt.Errorf("%w: %T", wms.ErrUnknownJobKind, job.Payload)
	}
	return err
}
