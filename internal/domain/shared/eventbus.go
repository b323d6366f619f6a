package shared

import "context"

// EventHandler reacts to commerce events such as stock movements or placed
// orders. EventTypes lists the types it wants when subscribed without an
// explicit list; an empty list means every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is what the sync services use to announce stock changes
// they applied from the warehouse.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus delivers published events to subscribed handlers for the lifetime
// of the process.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
