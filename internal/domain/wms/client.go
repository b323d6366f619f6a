package wms

import (
	"context"

	"github.com/google/uuid"
)

// Client is the remote WMS API as used by the sync engine. Implementations
// are bound to one channel's credentials.
type Client interface {
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	CreateWebhook(ctx context.Context, in WebhookInput) (*Webhook, error)
	DeactivateWebhook(ctx context.Context, idHook int) error

	ListVATGroups(ctx context.Context) ([]VATGroup, error)
	// CreateOrUpdateProduct upserts by SKU.
	CreateOrUpdateProduct(ctx context.Context, sku string, in ProductInput) (*Product, error)
	// AddProductImage attaches a base64 encoded image.
	AddProductImage(ctx context.Context, idProduct int, base64Image string) error
	ListActiveProducts(ctx context.Context) ([]Product, error)

	GetOrCreateMinimalCustomer(ctx context.Context, email, name string) (*Customer, error)
	CreateOrder(ctx context.Context, in OrderInput) (*Order, error)
	ProcessOrder(ctx context.Context, idOrder int) error
	AddOrderNote(ctx context.Context, idOrder int, note string) error

	GetStats(ctx context.Context) (Stats, error)

	// WebhookSecret is the secret hooks are registered with.
	WebhookSecret() string
	// VerifySignature checks a webhook signature over the exact raw body.
	VerifySignature(rawBody []byte, signature string) bool
}

// ClientFactory builds clients for a channel's current credentials.
type ClientFactory interface {
	// ClientFor returns an error matching ErrConfiguration when cfg is not active.
	ClientFor(ctx context.Context, cfg *TenantConfig) (Client, error)
	// Build returns an unpooled client for credentials that need not be
	// saved or enabled yet.
	Build(cfg *TenantConfig) (Client, error)
	// Invalidate drops any pooled client of the channel.
	Invalidate(channelID uuid.UUID)
}
