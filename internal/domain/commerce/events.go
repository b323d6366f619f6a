package commerce

import (
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types consumed and published by the sync engine.
const (
	EventTypeVariantChanged = "commerce.variant.changed"
	EventTypeProductChanged = "commerce.product.changed"
	EventTypeOrderPlaced    = "commerce.order.placed"
	EventTypeStockMovement  = "commerce.stock.movement"
)

// ChangeType tells created from updated and deleted.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Changed field names carried by change events.
const (
	FieldEnabled      = "enabled"
	FieldTranslations = "translations"
	FieldPrice        = "price"
	FieldTaxCategory  = "taxCategory"
)

// VariantChangedEvent is raised when variants are created, updated or deleted.
type VariantChangedEvent struct {
	shared.BaseDomainEvent
	ChangeType    ChangeType  `json:"change_type"`
	VariantIDs    []uuid.UUID `json:"variant_ids"`
	ChangedFields []string    `json:"changed_fields"`
	ActorID       string      `json:"actor_id,omitempty"`
}

// NewVariantChangedEvent creates a VariantChangedEvent.
func NewVariantChangedEvent(channelID uuid.UUID, change ChangeType, variantIDs []uuid.UUID, fields ...string) *VariantChangedEvent {
	var aggID uuid.UUID
	if len(variantIDs) > 0 {
		aggID = variantIDs[0]
	}
	return &VariantChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVariantChanged, "Variant", aggID, channelID),
		ChangeType:      change,
		VariantIDs:      variantIDs,
		ChangedFields:   fields,
	}
}

// HasChanged reports whether any of the fields changed.
func (e *VariantChangedEvent) HasChanged(fields ...string) bool {
	return containsAny(e.ChangedFields, fields)
}

// ProductChangedEvent is raised when a product is updated.
type ProductChangedEvent struct {
	shared.BaseDomainEvent
	ChangeType    ChangeType `json:"change_type"`
	ProductID     uuid.UUID  `json:"product_id"`
	ChangedFields []string   `json:"changed_fields"`
	ActorID       string     `json:"actor_id,omitempty"`
}

// NewProductChangedEvent creates a ProductChangedEvent.
func NewProductChangedEvent(channelID uuid.UUID, change ChangeType, productID uuid.UUID, fields ...string) *ProductChangedEvent {
	return &ProductChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductChanged, "Product", productID, channelID),
		ChangeType:      change,
		ProductID:       productID,
		ChangedFields:   fields,
	}
}

// HasChanged reports whether any of the fields changed.
func (e *ProductChangedEvent) HasChanged(fields ...string) bool {
	return containsAny(e.ChangedFields, fields)
}

// OrderPlacedEvent is raised when checkout completes.
type OrderPlacedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID `json:"order_id"`
	OrderCode string    `json:"order_code"`
	ActorID   string    `json:"actor_id,omitempty"`
}

// NewOrderPlacedEvent creates an OrderPlacedEvent.
func NewOrderPlacedEvent(channelID, orderID uuid.UUID, code string) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, "Order", orderID, channelID),
		OrderID:         orderID,
		OrderCode:       code,
	}
}

// StockMovementEvent carries one batch of stock adjustments.
type StockMovementEvent struct {
	shared.BaseDomainEvent
	Adjustments []StockAdjustment `json:"adjustments"`
}

// NewStockMovementEvent creates a StockMovementEvent.
func NewStockMovementEvent(channelID uuid.UUID, adjustments []StockAdjustment) *StockMovementEvent {
	return &StockMovementEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockMovement, "StockMovement", uuid.New(), channelID),
		Adjustments:     adjustments,
	}
}

func containsAny(haystack, needles []string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}
