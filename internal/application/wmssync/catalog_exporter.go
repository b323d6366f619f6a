package wmssync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
)

// PushFieldsFunc returns extra WMS product fields for a variant. The typed
// fields of the product input always take precedence.
type PushFieldsFunc func(variant *commerce.Variant) map[string]any

// ExportReport summarizes one catalog export.
type ExportReport struct {
	Total       int
	Pushed      int
	ImagesAdded int
	// MappingErrors lists the variants that could not be mapped. They are
	// reported, never retried.
	MappingErrors []error
}

// CatalogExporter upserts local variants as WMS products, keyed by SKU.
type CatalogExporter struct {
	catalog     commerce.CatalogService
	assets      commerce.AssetReader
	pushFields  PushFieldsFunc
	concurrency int
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// CatalogExporterConfig contains configuration for CatalogExporter
type CatalogExporterConfig struct {
	Catalog commerce.CatalogService
	Assets  commerce.AssetReader
	// PushFields is optional
	PushFields PushFieldsFunc
	// Concurrency bounds the variants pushed at the same time, default 5
	Concurrency int
	Metrics     *telemetry.SyncMetrics
	Logger      *zap.Logger
}

// NewCatalogExporter creates a new CatalogExporter
func NewCatalogExporter(cfg CatalogExporterConfig) *CatalogExporter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopSyncMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CatalogExporter{
		catalog:     cfg.Catalog,
		assets:      cfg.Assets,
		pushFields:  cfg.PushFields,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// PushVariants exports the variants named by the job. Every variant is
// attempted: a mapping failure only skips that variant, other failures are
// aggregated and returned so the job is retried.
func (e *CatalogExporter) PushVariants(ctx context.Context, t *Tenant, job wms.PushVariants) (*ExportReport, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	variants, err := e.resolveVariants(ctx, t.Channel.ID, job)
	if err != nil {
		return nil, err
	}
	report := &ExportReport{Total: len(variants)}
	if len(variants) == 0 {
		return report, nil
	}

	groups, err := t.Client.ListVATGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list VAT groups: %w", err)
	}

	var (
		g      errgroup.Group
		pushed atomic.Int64
		images atomic.Int64
	)
	g.SetLimit(e.concurrency)
	errs := make([]error, len(variants))
	for i, v := range variants {
		g.Go(func() error {
			product, err := e.upsert(ctx, t.Client, groups, v)
			if err != nil {
				errs[i] = err
				return nil
			}
			pushed.Add(1)
			added, err := e.attachImage(ctx, t, v, product)
			if err != nil {
				errs[i] = fmt.Errorf("image for %s: %w", v.SKU, err)
				return nil
			}
			if added {
				images.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Pushed = int(pushed.Load())
	report.ImagesAdded = int(images.Load())
	var failed error
	for _, err := range errs {
		if err == nil {
			continue
		}
		var mapping *wms.MappingError
		if errors.As(err, &mapping) {
			e.logger.Error("Variant not pushed to WMS",
				zap.String("channel", t.Channel.Token),
				zap.String("sku", mapping.SKU),
				zap.String("reason", mapping.Reason),
			)
			report.MappingErrors = append(report.MappingErrors, err)
			continue
		}
		failed = multierr.Append(failed, err)
	}

	e.metrics.VariantsPushed(ctx, t.Channel.ID.String(), report.Pushed)
	e.logger.Info("Pushed variants to WMS",
		zap.String("channel", t.Channel.Token),
		zap.Int("total", report.Total),
		zap.Int("pushed", report.Pushed),
		zap.Int("images_added", report.ImagesAdded),
		zap.Int("unmapped", len(report.MappingErrors)),
	)
	return report, failed
}

// resolveVariants loads the variants of a job. A disabled product disables
// all of its variants in the export.
func (e *CatalogExporter) resolveVariants(ctx context.Context, channelID uuid.UUID, job wms.PushVariants) ([]*commerce.Variant, error) {
	if len(job.VariantIDs) > 0 {
		return e.catalog.FindVariantsByIDs(ctx, channelID, job.VariantIDs)
	}

	product, err := e.catalog.FindProductWithVariants(ctx, channelID, *job.ProductID)
	if errors.Is(err, commerce.ErrProductNotFound) {
		e.logger.Warn("Product of push-variants job not found",
			zap.String("product_id", job.ProductID.String()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if product.Enabled && product.DeletedAt == nil {
		return product.Variants, nil
	}
	variants := make([]*commerce.Variant, len(product.Variants))
	for i, v := range product.Variants {
		disabled := *v
		disabled.Enabled = false
		variants[i] = &disabled
	}
	return variants, nil
}

// upsert creates or updates the WMS product of a variant.
func (e *CatalogExporter) upsert(ctx context.Context, client wms.Client, groups []wms.VATGroup, v *commerce.Variant) (*wms.Product, error) {
	if v.SKU == "" {
		return nil, wms.NewMappingError("", "variant %s has no SKU", v.ID)
	}
	group, ok := wms.FindVATGroup(groups, v.TaxRate)
	if !ok {
		return nil, wms.NewMappingError(v.SKU, "no VAT group for tax rate %s%%", v.TaxRate.String())
	}
	product, err := client.CreateOrUpdateProduct(ctx, v.SKU, e.productInput(v, group.IDVatGroup))
	if err != nil {
		return nil, fmt.Errorf("push variant %s: %w", v.SKU, err)
	}
	return product, nil
}

func (e *CatalogExporter) productInput(v *commerce.Variant, idVatGroup int) wms.ProductInput {
	name := norm.NFC.String(strings.TrimSpace(v.Name))
	if name == "" {
		name = v.SKU
	}
	in := wms.ProductInput{
		IDVatGroup:  idVatGroup,
		Name:        name,
		Price:       decimal.New(v.Price, -2),
		ProductCode: v.SKU,
		Active:      v.Enabled && v.DeletedAt == nil,
	}
	if e.pushFields != nil {
		in.Extra = e.pushFields(v)
	}
	return in
}

// attachImage uploads the featured image when the WMS product has none yet.
func (e *CatalogExporter) attachImage(ctx context.Context, t *Tenant, v *commerce.Variant, product *wms.Product) (bool, error) {
	if product.HasImages() || e.assets == nil {
		return false, nil
	}
	asset := v.FeaturedImage()
	if asset == nil {
		return false, nil
	}
	if !asset.IsSupportedRaster() {
		e.logger.Info("Featured asset is not a png or jpeg, skipping",
			zap.String("sku", v.SKU),
			zap.String("asset", asset.Source),
		)
		return false, nil
	}
	data, err := e.assets.ReadAsset(ctx, asset.Source)
	if errors.Is(err, commerce.ErrAssetNotFound) {
		e.logger.Warn("Featured asset missing from storage",
			zap.String("sku", v.SKU),
			zap.String("asset", asset.Source),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := t.Client.AddProductImage(ctx, product.IDProduct, base64.StdEncoding.EncodeToString(data)); err != nil {
		return false, err
	}
	e.logger.Info("Added image to WMS product",
		zap.String("channel", t.Channel.Token),
		zap.String("sku", v.SKU),
	)
	return true, nil
}
