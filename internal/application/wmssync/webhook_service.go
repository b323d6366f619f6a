package wmssync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
)

// WebhookService authenticates inbound WMS webhooks and routes them to the
// stock reconciler or the fulfillment service.
type WebhookService struct {
	resolver    tenantResolver
	stock       *StockReconciler
	fulfillment *FulfillmentService
	dedupe      shared.IdempotencyStore
	dedupeTTL   time.Duration
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Channels    commerce.ChannelResolver
	Configs     wms.TenantConfigRepository
	Clients     wms.ClientFactory
	Stock       *StockReconciler
	Fulfillment *FulfillmentService
	// Dedupe is optional. When set, redelivered bodies are acknowledged
	// without being processed again.
	Dedupe    shared.IdempotencyStore
	DedupeTTL time.Duration
	Metrics   *telemetry.SyncMetrics
	Logger    *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopSyncMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &WebhookService{
		resolver: tenantResolver{
			channels: cfg.Channels,
			configs:  cfg.Configs,
			clients:  cfg.Clients,
		},
		stock:       cfg.Stock,
		fulfillment: cfg.Fulfillment,
		dedupe:      cfg.Dedupe,
		dedupeTTL:   cfg.DedupeTTL,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Handle processes one webhook. It returns an error matching
// wms.ErrAuthentication for an unknown channel or a bad signature; nothing
// is mutated in that case. A channel without an active integration and an
// unknown event are acknowledged without doing anything.
func (s *WebhookService) Handle(ctx context.Context, ev wms.WebhookEvent) error {
	channel, err := s.resolver.byToken(ctx, ev.ChannelToken)
	if err != nil {
		s.logger.Error("Webhook for unknown channel", zap.String("channel", ev.ChannelToken), zap.Error(err))
		s.metrics.WebhookReceived(ctx, "", telemetry.OutcomeDenied)
		return err
	}
	t, err := s.resolver.forChannel(ctx, channel)
	if err != nil {
		if wms.IsConfigurationError(err) {
			s.logger.Warn("No active WMS integration for webhook channel, ignoring",
				zap.String("channel", channel.Token),
				zap.Error(err),
			)
			s.metrics.WebhookReceived(ctx, "", telemetry.OutcomeIgnored)
			return nil
		}
		return err
	}

	if !t.Client.VerifySignature(ev.RawBody, ev.Signature) {
		s.logger.Error("Invalid signature for incoming webhook", zap.String("channel", channel.Token))
		s.metrics.WebhookReceived(ctx, "", telemetry.OutcomeDenied)
		return wms.ErrInvalidSignature
	}

	payload, err := wms.ParseWebhookPayload(ev.RawBody)
	if err != nil {
		s.metrics.WebhookReceived(ctx, "", telemetry.OutcomeFailed)
		return err
	}
	log := s.logger.With(zap.String("channel", channel.Token), zap.String("event", payload.Event))

	key, dedupable := dedupeKey(channel, payload, ev.RawBody)
	if s.dedupe != nil && dedupable {
		fresh, err := s.dedupe.MarkProcessed(ctx, key, s.dedupeTTL)
		switch {
		case err != nil:
			log.Warn("Webhook dedupe unavailable, processing anyway", zap.Error(err))
		case !fresh:
			log.Info("Duplicate webhook delivery, skipping")
			s.metrics.WebhookReceived(ctx, payload.Event, telemetry.OutcomeIgnored)
			return nil
		}
	}

	if err := s.route(ctx, t, payload, log); err != nil {
		if s.dedupe != nil && dedupable {
			if relErr := s.dedupe.Release(ctx, key); relErr != nil {
				log.Warn("Failed to release webhook dedupe key", zap.Error(relErr))
			}
		}
		s.metrics.WebhookReceived(ctx, payload.Event, telemetry.OutcomeFailed)
		log.Error("Failed to handle webhook", zap.Error(err))
		return err
	}
	return nil
}

func (s *WebhookService) route(ctx context.Context, t *Tenant, payload *wms.WebhookPayload, log *zap.Logger) error {
	switch payload.Event {
	case wms.EventFreeStockChanged:
		product, err := payload.StockChanged()
		if err != nil {
			return err
		}
		if _, err := s.stock.Apply(ctx, t.Channel.ID, []wms.Product{*product}); err != nil {
			return err
		}
	case wms.EventPicklistClosed:
		picklist, err := payload.PicklistClosed()
		if err != nil {
			return err
		}
		if _, err := s.fulfillment.HandlePicklistClosed(ctx, t.Channel.ID, picklist); err != nil {
			return err
		}
	default:
		log.Warn("Unknown webhook event, not handling this webhook")
		s.metrics.WebhookReceived(ctx, payload.Event, telemetry.OutcomeIgnored)
		return nil
	}
	s.metrics.WebhookReceived(ctx, payload.Event, telemetry.OutcomeSuccess)
	log.Info("Successfully handled webhook")
	return nil
}

// dedupeKey keys a delivery by channel, delivery ID and body. Bodies without
// a delivery ID cannot tell a redelivery from a repeated state, so they are
// never deduplicated.
func dedupeKey(channel *commerce.Channel, payload *wms.WebhookPayload, body []byte) (string, bool) {
	id := payload.DeliveryID()
	if id == "" {
		return "", false
	}
	h := sha256.New()
	h.Write(channel.ID[:])
	h.Write([]byte(id))
	h.Write(body)
	return fmt.Sprintf("wms-webhook:%s", hex.EncodeToString(h.Sum(nil))), true
}
