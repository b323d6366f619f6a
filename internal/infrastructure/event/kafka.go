package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventConsumer feeds commerce events published by other services on a
// Kafka topic into the local event bus. Offsets are committed after the bus
// has delivered the event; undecodable messages are logged and committed.
type KafkaEventConsumer struct {
	reader     messageReader
	serializer *EventSerializer
	publisher  shared.EventPublisher
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewKafkaEventConsumer creates a consumer group reader on topic.
func NewKafkaEventConsumer(brokers []string, groupID, topic string, serializer *EventSerializer, publisher shared.EventPublisher, logger *zap.Logger) *KafkaEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return newKafkaEventConsumer(reader, serializer, publisher, logger)
}

func newKafkaEventConsumer(reader messageReader, serializer *EventSerializer, publisher shared.EventPublisher, logger *zap.Logger) *KafkaEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaEventConsumer{
		reader:     reader,
		serializer: serializer,
		publisher:  publisher,
		logger:     logger.Named("kafka_consumer"),
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaEventConsumer) Run(ctx context.Context) error {
	c.logger.Info("Kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer stopped")
				return nil
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *KafkaEventConsumer) handle(ctx context.Context, msg kafka.Message) {
	event, err := c.serializer.Deserialize(msg.Value)
	if errors.Is(err, ErrUnknownEventType) {
		c.logger.Debug("Ignoring event", zap.Error(err))
		return
	}
	if err != nil {
		c.logger.Error("Failed to decode event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("Failed to publish event",
			zap.String("event", event.EventType()),
			zap.Error(err),
		)
	}
}

// Close closes the underlying reader
func (c *KafkaEventConsumer) Close() error {
	return c.reader.Close()
}

// KafkaStockMovementForwarder publishes stock movement events to a Kafka
// topic keyed by channel, so downstream inventory consumers see every
// adjustment the sync engine made.
type KafkaStockMovementForwarder struct {
	writer       messageWriter
	serializer   *EventSerializer
	writeTimeout time.Duration
}

// NewKafkaStockMovementForwarder creates a forwarder writing to topic.
func NewKafkaStockMovementForwarder(brokers []string, topic string, writeTimeout time.Duration, serializer *EventSerializer) *KafkaStockMovementForwarder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}
	return newKafkaStockMovementForwarder(writer, serializer, writeTimeout)
}

func newKafkaStockMovementForwarder(writer messageWriter, serializer *EventSerializer, writeTimeout time.Duration) *KafkaStockMovementForwarder {
	return &KafkaStockMovementForwarder{
		writer:       writer,
		serializer:   serializer,
		writeTimeout: writeTimeout,
	}
}

// EventTypes returns the stock movement event type
func (f *KafkaStockMovementForwarder) EventTypes() []string {
	return []string{commerce.EventTypeStockMovement}
}

// Handle writes the event to Kafka
func (f *KafkaStockMovementForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	value, err := f.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", event.EventType(), err)
	}
	if f.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.writeTimeout)
		defer cancel()
	}
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ChannelID().String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s to kafka: %w", event.EventType(), err)
	}
	return nil
}

// Close flushes and closes the writer
func (f *KafkaStockMovementForwarder) Close() error {
	return f.writer.Close()
}

var _ shared.EventHandler = (*KafkaStockMovementForwarder)(nil)
