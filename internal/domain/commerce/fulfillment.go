package commerce

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FulfillmentState is the state of a Fulfillment
type FulfillmentState string

const (
	FulfillmentStatePending   FulfillmentState = "Pending"
	FulfillmentStateShipped   FulfillmentState = "Shipped"
	FulfillmentStateDelivered FulfillmentState = "Delivered"
	FulfillmentStateCancelled FulfillmentState = "Cancelled"
)

// IsValid returns true if the state is known
func (s FulfillmentState) IsValid() bool {
	switch s {
	case FulfillmentStatePending, FulfillmentStateShipped, FulfillmentStateDelivered, FulfillmentStateCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s FulfillmentState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s FulfillmentState) IsTerminal() bool {
	return s == FulfillmentStateDelivered || s == FulfillmentStateCancelled
}

var fulfillmentTransitions = map[FulfillmentState][]FulfillmentState{
	FulfillmentStatePending: {FulfillmentStateShipped, FulfillmentStateCancelled},
	FulfillmentStateShipped: {FulfillmentStateDelivered, FulfillmentStateCancelled},
}

// ErrInvalidTransition is returned for a transition the state machine does not allow.
var ErrInvalidTransition = errors.New("commerce: invalid fulfillment transition")

// FulfillmentLine is the quantity of one order line covered by a fulfillment.
type FulfillmentLine struct {
	OrderLineID uuid.UUID
	Quantity    int
}

// Fulfillment is a shipment of order lines.
type Fulfillment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	HandlerCode string
	State       FulfillmentState
	Lines       []FulfillmentLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewFulfillment creates a pending fulfillment.
func NewFulfillment(orderID uuid.UUID, handlerCode string, lines []FulfillmentLine) (*Fulfillment, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: fulfillment needs at least one line", ErrInvalidFulfillment)
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %s has quantity %d", ErrInvalidFulfillment, l.OrderLineID, l.Quantity)
		}
	}
	now := time.Now()
	return &Fulfillment{
		ID:          uuid.New(),
		OrderID:     orderID,
		HandlerCode: handlerCode,
		State:       FulfillmentStatePending,
		Lines:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo reports whether the fulfillment may move to the state.
func (f *Fulfillment) CanTransitionTo(to FulfillmentState) bool {
	for _, allowed := range fulfillmentTransitions[f.State] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the fulfillment to the given state.
func (f *Fulfillment) TransitionTo(to FulfillmentState) error {
	if !f.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.State, to)
	}
	f.State = to
	f.UpdatedAt = time.Now()
	return nil
}

// DeriveOrderState computes the order state from its fulfillments. It
// returns the current state unchanged when nothing was fulfilled.
func DeriveOrderState(order *Order, fulfillments []*Fulfillment) string {
	ordered := make(map[uuid.UUID]int, len(order.Lines))
	for _, l := range order.Lines {
		ordered[l.ID] += l.Quantity
	}
	shipped := make(map[uuid.UUID]int)
	delivered := make(map[uuid.UUID]int)
	fulfilled := false
	for _, f := range fulfillments {
		if f.State == FulfillmentStateCancelled || f.State == FulfillmentStatePending {
			continue
		}
		fulfilled = true
		for _, l := range f.Lines {
			shipped[l.OrderLineID] += l.Quantity
			if f.State == FulfillmentStateDelivered {
				delivered[l.OrderLineID] += l.Quantity
			}
		}
	}
	if !fulfilled {
		return order.State
	}
	allShipped, allDelivered, anyDelivered := true, true, false
	for id, qty := range ordered {
		if shipped[id] < qty {
			allShipped = false
		}
		if delivered[id] < qty {
			allDelivered = false
		}
		if delivered[id] > 0 {
			anyDelivered = true
		}
	}
	switch {
	case allDelivered:
		return OrderStateDelivered
	case anyDelivered:
		return OrderStatePartiallyDelivered
	case allShipped:
		return OrderStateShipped
	default:
		return OrderStatePartiallyShipped
	}
}
