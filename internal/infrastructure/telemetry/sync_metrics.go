package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Attribute keys shared by the sync metrics.
var (
	AttrJobType   = attribute.Key("job.type")
	AttrOutcome   = attribute.Key("outcome")
	AttrEvent     = attribute.Key("webhook.event")
	AttrChannelID = attribute.Key("channel_id")
)

// Outcomes recorded on job and webhook metrics.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
	OutcomeIgnored = "ignored"
	OutcomeDenied  = "denied"
)

// JobDurationBuckets are bucket boundaries for job duration (seconds).
var JobDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// SyncMetrics records what the sync engine does.
type SyncMetrics struct {
	jobs           metric.Int64Counter
	jobDuration    metric.Float64Histogram
	queueDepth     metric.Int64Gauge
	webhooks       metric.Int64Counter
	variantsPushed metric.Int64Counter
	stockAdjusted  metric.Int64Counter
	ordersPushed   metric.Int64Counter
}

// NewSyncMetrics creates the instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.jobs, err = meter.Int64Counter("wmssync.jobs",
		metric.WithDescription("Sync jobs run, by type and outcome"),
		metric.WithUnit("{job}")); err != nil {
		return nil, fmt.Errorf("failed to create jobs counter: %w", err)
	}
	if m.jobDuration, err = meter.Float64Histogram("wmssync.job.duration",
		metric.WithDescription("Sync job run time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(JobDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create job duration histogram: %w", err)
	}
	if m.queueDepth, err = meter.Int64Gauge("wmssync.queue.depth",
		metric.WithDescription("Jobs waiting in the sync queue"),
		metric.WithUnit("{job}")); err != nil {
		return nil, fmt.Errorf("failed to create queue depth gauge: %w", err)
	}
	if m.webhooks, err = meter.Int64Counter("wmssync.webhooks",
		metric.WithDescription("Inbound WMS webhooks, by event and outcome"),
		metric.WithUnit("{webhook}")); err != nil {
		return nil, fmt.Errorf("failed to create webhooks counter: %w", err)
	}
	if m.variantsPushed, err = meter.Int64Counter("wmssync.variants.pushed",
		metric.WithDescription("Variants upserted in the WMS"),
		metric.WithUnit("{variant}")); err != nil {
		return nil, fmt.Errorf("failed to create variants counter: %w", err)
	}
	if m.stockAdjusted, err = meter.Int64Counter("wmssync.stock.adjustments",
		metric.WithDescription("Variant stock levels changed from WMS stock"),
		metric.WithUnit("{variant}")); err != nil {
		return nil, fmt.Errorf("failed to create stock adjustments counter: %w", err)
	}
	if m.ordersPushed, err = meter.Int64Counter("wmssync.orders.pushed",
		metric.WithDescription("Orders created in the WMS"),
		metric.WithUnit("{order}")); err != nil {
		return nil, fmt.Errorf("failed to create orders counter: %w", err)
	}
	return m, nil
}

// NewNoopSyncMetrics returns metrics that record nothing.
func NewNoopSyncMetrics() *SyncMetrics {
	m, _ := NewSyncMetrics(noop.NewMeterProvider().Meter(TracerName))
	return m
}

// JobFinished records one job run.
func (m *SyncMetrics) JobFinished(ctx context.Context, jobType, outcome string, took time.Duration) {
	attrs := metric.WithAttributes(AttrJobType.String(jobType), AttrOutcome.String(outcome))
	m.jobs.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, took.Seconds(), attrs)
}

// QueueDepth records the number of waiting jobs.
func (m *SyncMetrics) QueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}

// WebhookReceived records one inbound webhook.
func (m *SyncMetrics) WebhookReceived(ctx context.Context, event, outcome string) {
	m.webhooks.Add(ctx, 1, metric.WithAttributes(AttrEvent.String(event), AttrOutcome.String(outcome)))
}

// VariantsPushed records variants upserted for a channel.
func (m *SyncMetrics) VariantsPushed(ctx context.Context, channelID string, n int) {
	if n > 0 {
		m.variantsPushed.Add(ctx, int64(n), metric.WithAttributes(AttrChannelID.String(channelID)))
	}
}

// StockAdjusted records variants whose stock changed.
func (m *SyncMetrics) StockAdjusted(ctx context.Context, channelID string, n int) {
	if n > 0 {
		m.stockAdjusted.Add(ctx, int64(n), metric.WithAttributes(AttrChannelID.String(channelID)))
	}
}

// OrderPushed records an order created in the WMS.
func (m *SyncMetrics) OrderPushed(ctx context.Context, channelID string) {
	m.ordersPushed.Add(ctx, 1, metric.WithAttributes(AttrChannelID.String(channelID)))
}
