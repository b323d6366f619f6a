package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	eventTypes []string
	err        error
	panicMsg   string

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func orderPlaced() *commerce.OrderPlacedEvent {
	return commerce.NewOrderPlacedEvent(uuid.New(), uuid.New(), "ORD-1")
}

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	orders := newRecordingHandler(commerce.EventTypeOrderPlaced)
	stock := newRecordingHandler(commerce.EventTypeStockMovement)
	bus.Subscribe(orders)
	bus.Subscribe(stock)

	require.NoError(t, bus.Publish(context.Background(), orderPlaced(), orderPlaced()))

	assert.Equal(t, 2, orders.count())
	assert.Equal(t, 0, stock.count())
}

func TestInMemoryEventBus_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	all := newRecordingHandler()
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		orderPlaced(),
		commerce.NewStockMovementEvent(uuid.New(), nil),
	))
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	h := newRecordingHandler(commerce.EventTypeOrderPlaced)
	bus.Subscribe(h, commerce.EventTypeStockMovement)

	require.NoError(t, bus.Publish(context.Background(), orderPlaced()))
	assert.Equal(t, 0, h.count())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newRecordingHandler(commerce.EventTypeOrderPlaced)
	failing.err = errors.New("handler error")
	panicking := newRecordingHandler(commerce.EventTypeOrderPlaced)
	panicking.panicMsg = "kaboom"
	healthy := newRecordingHandler(commerce.EventTypeOrderPlaced)

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), orderPlaced()))
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, panicking.count())
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(context.Background()))
}
