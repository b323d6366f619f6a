package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetchErrs []error
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaEventConsumer_PublishesDecodedEvents(t *testing.T) {
	s := NewCommerceEventSerializer()
	placed, err := s.Serialize(orderPlaced())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		cancel:    cancel,
		fetchErrs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{
			{Offset: 1, Value: placed},
			{Offset: 2, Value: []byte(`{"type":"commerce.cart.abandoned"}`)},
			{Offset: 3, Value: []byte(`garbage`)},
		},
	}

	bus := NewInMemoryEventBus(nil)
	orders := newRecordingHandler(commerce.EventTypeOrderPlaced)
	bus.Subscribe(orders)

	consumer := newKafkaEventConsumer(reader, s, bus, nil)
	consumer.retryDelay = time.Millisecond

	require.NoError(t, consumer.Run(ctx))

	assert.Equal(t, 1, orders.count())
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestKafkaStockMovementForwarder(t *testing.T) {
	s := NewCommerceEventSerializer()
	writer := &fakeWriter{}
	f := newKafkaStockMovementForwarder(writer, s, time.Second)

	channelID := uuid.New()
	event := commerce.NewStockMovementEvent(channelID, []commerce.StockAdjustment{
		{VariantID: uuid.New(), SKU: "SHIRT-RED", Quantity: -2},
	})

	require.NoError(t, f.Handle(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, channelID.String(), string(msg.Key))
	assert.Contains(t, string(msg.Value), `"sku":"SHIRT-RED"`)

	decoded, err := s.Deserialize(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID(), decoded.EventID())
	assert.Equal(t, []string{commerce.EventTypeStockMovement}, f.EventTypes())
}

func TestKafkaStockMovementForwarder_WriteError(t *testing.T) {
	f := newKafkaStockMovementForwarder(&fakeWriter{err: errors.New("no leader")}, NewCommerceEventSerializer(), 0)
	err := f.Handle(context.Background(), commerce.NewStockMovementEvent(uuid.New(), nil))
	assert.ErrorContains(t, err, "no leader")
}
