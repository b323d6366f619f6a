package commerce

import (
	"context"

	"github.com/google/uuid"
)

// ChannelResolver resolves sales channels.
type ChannelResolver interface {
	FindChannelByToken(ctx context.Context, token string) (*Channel, error)
	FindChannelByID(ctx context.Context, id uuid.UUID) (*Channel, error)
}

// CatalogService reads and mutates products and variants of a channel.
// Variants are returned hydrated with their product and tax rate.
type CatalogService interface {
	FindVariantsByIDs(ctx context.Context, channelID uuid.UUID, ids []uuid.UUID) ([]*Variant, error)
	FindProductWithVariants(ctx context.Context, channelID, productID uuid.UUID) (*Product, error)
	FindVariantsBySKUs(ctx context.Context, channelID uuid.UUID, skus []string) ([]*Variant, error)
	// ListActiveVariantIDs pages over enabled, non-deleted variants of
	// enabled, non-deleted products. It returns the page and the total count.
	ListActiveVariantIDs(ctx context.Context, channelID uuid.UUID, offset, limit int) ([]uuid.UUID, int64, error)
	// ApplyFreeStock sets stock on hand to the allocated quantity stored at
	// write time plus freeStock, and merges the optional extra fields.
	ApplyFreeStock(ctx context.Context, variantID uuid.UUID, freeStock int, extra map[string]any) (StockChange, error)
}

// OrderService reads orders and drives fulfillments.
type OrderService interface {
	FindOrderByID(ctx context.Context, channelID, orderID uuid.UUID) (*Order, error)
	FindOrderByCode(ctx context.Context, channelID uuid.UUID, code string) (*Order, error)
	CreateFulfillment(ctx context.Context, orderID uuid.UUID, handlerCode string, lines []FulfillmentLine) (*Fulfillment, error)
	// TransitionFulfillment returns an error wrapping ErrInvalidTransition
	// when the state machine rejects the move.
	TransitionFulfillment(ctx context.Context, fulfillmentID uuid.UUID, to FulfillmentState) (*Order, error)
}

// AssetReader loads stored asset bytes.
type AssetReader interface {
	ReadAsset(ctx context.Context, source string) ([]byte, error)
}
