package wmssync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/erp/wmssync/internal/domain/wms"
)

// variantSyncFields are the variant fields mirrored in the WMS. Changes to
// any other field do not cause a push.
var variantSyncFields = []string{
	commerce.FieldEnabled,
	commerce.FieldTranslations,
	commerce.FieldPrice,
	commerce.FieldTaxCategory,
}

// SyncEventSubscriber turns commerce events into sync jobs.
type SyncEventSubscriber struct {
	queue    wms.JobQueue
	channels commerce.ChannelResolver
	logger   *zap.Logger
}

var _ shared.EventHandler = (*SyncEventSubscriber)(nil)

// SyncEventSubscriberConfig contains configuration for SyncEventSubscriber
type SyncEventSubscriberConfig struct {
	Queue    wms.JobQueue
	Channels commerce.ChannelResolver
	Logger   *zap.Logger
}

// NewSyncEventSubscriber creates a new SyncEventSubscriber
func NewSyncEventSubscriber(cfg SyncEventSubscriberConfig) *SyncEventSubscriber {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SyncEventSubscriber{
		queue:    cfg.Queue,
		channels: cfg.Channels,
		logger:   cfg.Logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (s *SyncEventSubscriber) EventTypes() []string {
	return []string{
		commerce.EventTypeVariantChanged,
		commerce.EventTypeProductChanged,
		commerce.EventTypeOrderPlaced,
	}
}

// Handle enqueues the job an event calls for, if any.
func (s *SyncEventSubscriber) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *commerce.VariantChangedEvent:
		if e.ChangeType != commerce.ChangeCreated && e.ChangeType != commerce.ChangeUpdated {
			return nil
		}
		if !e.HasChanged(variantSyncFields...) {
			s.logger.Debug("No relevant variant changes, not pushing to WMS",
				zap.Int("variants", len(e.VariantIDs)),
			)
			return nil
		}
		if len(e.VariantIDs) == 0 {
			return nil
		}
		return s.enqueue(ctx, event, e.ActorID, wms.PushVariants{VariantIDs: e.VariantIDs})

	case *commerce.ProductChangedEvent:
		if e.ChangeType != commerce.ChangeUpdated || !e.HasChanged(commerce.FieldEnabled) {
			return nil
		}
		productID := e.ProductID
		return s.enqueue(ctx, event, e.ActorID, wms.PushVariants{ProductID: &productID})

	case *commerce.OrderPlacedEvent:
		return s.enqueue(ctx, event, e.ActorID, wms.PushOrder{OrderID: e.OrderID})
	}

	s.logger.Error("unexpected event type",
		zap.Strings("expected", s.EventTypes()),
		zap.String("actual", event.EventType()),
	)
	return fmt.Errorf("unexpected event type: %s", event.EventType())
}

func (s *SyncEventSubscriber) enqueue(ctx context.Context, event shared.DomainEvent, actorID string, payload wms.JobPayload) error {
	channel, err := s.channels.FindChannelByID(ctx, event.ChannelID())
	if err != nil {
		return fmt.Errorf("resolve channel of %s: %w", event.EventType(), err)
	}
	jc := wms.JobContext{
		ChannelID:    channel.ID,
		ChannelToken: channel.Token,
		ActorID:      actorID,
	}
	job, err := s.queue.Enqueue(ctx, jc, payload)
	if err != nil {
		s.logger.Error("Failed to enqueue sync job",
			zap.String("channel", channel.Token),
			zap.String("job_kind", payload.Kind().String()),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("Added sync job to queue",
		zap.String("channel", channel.Token),
		zap.String("job_id", job.ID.String()),
		zap.String("job_kind", payload.Kind().String()),
	)
	return nil
}
