package picqer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wmssync/internal/domain/wms"
)

func activeTenantConfig() *wms.TenantConfig {
	cfg := wms.NewTenantConfig(uuid.New())
	cfg.Enabled = true
	cfg.APIKey = "key-1"
	cfg.APIEndpoint = "https://acme.picqer.com"
	cfg.StorefrontURL = "https://shop.example.com"
	cfg.SupportEmail = "support@example.com"
	return cfg
}

func TestClientCache_ReusesClientForSameCredentials(t *testing.T) {
	cache := NewClientCache(ClientCacheConfig{}, nil)
	cfg := activeTenantConfig()

	first, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)
	second, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, cfg.WebhookSecret(), first.WebhookSecret())
}

func TestClientCache_RebuildsOnCredentialChange(t *testing.T) {
	cache := NewClientCache(ClientCacheConfig{}, nil)
	cfg := activeTenantConfig()

	first, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)

	cfg.APIKey = "key-2"
	second, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.WebhookSecret(), second.WebhookSecret())
}

func TestClientCache_Invalidate(t *testing.T) {
	cache := NewClientCache(ClientCacheConfig{}, nil)
	cfg := activeTenantConfig()

	first, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)
	cache.Invalidate(cfg.ChannelID)
	second, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestClientCache_InactiveConfig(t *testing.T) {
	cache := NewClientCache(ClientCacheConfig{}, nil)
	cfg := activeTenantConfig()
	cfg.Enabled = false

	client, err := cache.ClientFor(context.Background(), cfg)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, wms.ErrNotEnabled)
	assert.True(t, wms.IsConfigurationError(err))
}

func TestClientCache_BuildIgnoresEnabledAndPool(t *testing.T) {
	cache := NewClientCache(ClientCacheConfig{}, nil)
	cfg := activeTenantConfig()
	cfg.Enabled = false

	built, err := cache.Build(cfg)
	require.NoError(t, err)
	assert.NotNil(t, built)

	cfg.Enabled = true
	pooled, err := cache.ClientFor(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotSame(t, built, pooled)

	cfg.APIKey = ""
	_, err = cache.Build(cfg)
	assert.ErrorIs(t, err, ErrConfigMissingAPIKey)
}
