package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrUnknownEventType is returned when decoding an unregistered event type.
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer converts domain events to and from their JSON wire form.
// The wire form is self-describing: the "type" field selects the Go type.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{registry: make(map[string]reflect.Type)}
}

// NewCommerceEventSerializer creates a serializer for the commerce events the
// sync engine consumes and publishes.
func NewCommerceEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(commerce.EventTypeVariantChanged, &commerce.VariantChangedEvent{})
	s.Register(commerce.EventTypeProductChanged, &commerce.ProductChangedEvent{})
	s.Register(commerce.EventTypeOrderPlaced, &commerce.OrderPlacedEvent{})
	s.Register(commerce.EventTypeStockMovement, &commerce.StockMovementEvent{})
	return s
}

// Register registers the Go type of an event type
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize serializes a domain event to JSON bytes
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize decodes a wire event. Missing IDs and timestamps are filled in
// so producers may omit them.
func (s *EventSerializer) Deserialize(data []byte) (shared.DomainEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read event type: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[head.Type]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", head.Type, err)
	}

	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("type %s does not implement DomainEvent", t)
	}
	if f := reflect.ValueOf(ptr).Elem().FieldByName("BaseDomainEvent"); f.IsValid() {
		if base, ok := f.Addr().Interface().(*shared.BaseDomainEvent); ok {
			fillDefaults(base)
		}
	}
	return event, nil
}

func fillDefaults(b *shared.BaseDomainEvent) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}
