package wmssync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
)

// PullFieldsFunc copies extra fields from a WMS product onto the local
// variant. Errors are logged and the stock update proceeds without them.
type PullFieldsFunc func(product *wms.Product) (map[string]any, error)

// StockReport summarizes one reconciliation batch.
type StockReport struct {
	Products  int
	Matched   int
	Updated   int
	NoStock   int
	Unmatched int
}

// StockReconciler applies WMS free stock to local variants.
type StockReconciler struct {
	catalog     commerce.CatalogService
	publisher   shared.EventPublisher
	pullFields  PullFieldsFunc
	concurrency int
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// StockReconcilerConfig contains configuration for StockReconciler
type StockReconcilerConfig struct {
	Catalog   commerce.CatalogService
	Publisher shared.EventPublisher
	// PullFields is optional
	PullFields  PullFieldsFunc
	Concurrency int
	Metrics     *telemetry.SyncMetrics
	Logger      *zap.Logger
}

// NewStockReconciler creates a new StockReconciler
func NewStockReconciler(cfg StockReconcilerConfig) *StockReconciler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopSyncMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StockReconciler{
		catalog:     cfg.Catalog,
		publisher:   cfg.Publisher,
		pullFields:  cfg.PullFields,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// PullStockLevels reconciles every active WMS product of the tenant.
func (r *StockReconciler) PullStockLevels(ctx context.Context, t *Tenant) (*StockReport, error) {
	products, err := t.Client.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	report, err := r.Apply(ctx, t.Channel.ID, products)
	if err != nil {
		return report, err
	}
	r.logger.Info("Pulled stock levels from WMS",
		zap.String("channel", t.Channel.Token),
		zap.Int("products", report.Products),
		zap.Int("updated", report.Updated),
	)
	return report, nil
}

// Apply sets stock on hand of every variant matching a product's SKU to
// allocated plus free stock, the allocation being read by the store as it
// writes. Products without stock information and SKUs
// unknown to the channel are skipped. All adjustments of the batch are
// published as one stock movement event.
func (r *StockReconciler) Apply(ctx context.Context, channelID uuid.UUID, products []wms.Product) (*StockReport, error) {
	report := &StockReport{Products: len(products)}
	bySKU := make(map[string]*wms.Product, len(products))
	skus := make([]string, 0, len(products))
	for i := range products {
		sku := products[i].ProductCode
		if sku == "" {
			continue
		}
		if _, seen := bySKU[sku]; !seen {
			bySKU[sku] = &products[i]
			skus = append(skus, sku)
		}
	}
	if len(skus) == 0 {
		return report, nil
	}

	variants, err := r.catalog.FindVariantsBySKUs(ctx, channelID, skus)
	if err != nil {
		return nil, fmt.Errorf("find variants by sku: %w", err)
	}
	matched := make(map[string]bool, len(variants))
	for _, v := range variants {
		matched[v.SKU] = true
	}
	report.Matched = len(variants)
	report.Unmatched = len(skus) - len(matched)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	adjustments := make([]*commerce.StockAdjustment, len(variants))
	errs := make([]error, len(variants))
	for i, v := range variants {
		product := bySKU[v.SKU]
		if product == nil {
			continue
		}
		free := product.FreeStock()
		if free == nil {
			r.logger.Info("WMS product has no stock set, not updating variant",
				zap.Int("wms_product_id", product.IDProduct),
				zap.String("sku", v.SKU),
			)
			report.NoStock++
			continue
		}
		g.Go(func() error {
			change, err := r.catalog.ApplyFreeStock(ctx, v.ID, *free, r.extraFields(product))
			if err != nil {
				errs[i] = fmt.Errorf("update stock of %s: %w", v.SKU, err)
				return nil
			}
			adjustments[i] = &commerce.StockAdjustment{
				VariantID: v.ID,
				SKU:       v.SKU,
				Quantity:  change.Delta(),
			}
			return nil
		})
	}
	_ = g.Wait()

	applied := make([]commerce.StockAdjustment, 0, len(adjustments))
	for _, a := range adjustments {
		if a != nil {
			applied = append(applied, *a)
		}
	}
	report.Updated = len(applied)

	if len(applied) > 0 && r.publisher != nil {
		if err := r.publisher.Publish(ctx, commerce.NewStockMovementEvent(channelID, applied)); err != nil {
			r.logger.Error("Failed to publish stock movement",
				zap.String("channel_id", channelID.String()),
				zap.Error(err),
			)
		}
	}
	r.metrics.StockAdjusted(ctx, channelID.String(), report.Updated)
	r.logger.Debug("Updated stock levels",
		zap.String("channel_id", channelID.String()),
		zap.Int("updated", report.Updated),
		zap.Int("unmatched", report.Unmatched),
	)
	return report, multierr.Combine(errs...)
}

func (r *StockReconciler) extraFields(product *wms.Product) map[string]any {
	if r.pullFields == nil {
		return nil
	}
	fields, err := r.pullFields(product)
	if err != nil {
		r.logger.Error("Failed to get additional fields from WMS product",
			zap.String("sku", product.ProductCode),
			zap.Error(err),
		)
		return nil
	}
	return fields
}
