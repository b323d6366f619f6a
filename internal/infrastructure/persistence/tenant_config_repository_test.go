package persistence

import (
	"context"
	"testing"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestGormTenantConfigRepository_FindByChannel_NotConfigured(t *testing.T) {
	repo := NewGormTenantConfigRepository(newSQLiteDatabase(t).DB)

	cfg, err := repo.FindByChannel(context.Background(), uuid.New())
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, wms.ErrNotConfigured)
	assert.True(t, wms.IsConfigurationError(err))
}

func TestGormTenantConfigRepository_SaveAndFind(t *testing.T) {
	repo := NewGormTenantConfigRepository(newSQLiteDatabase(t).DB)
	ctx := context.Background()
	channelID := uuid.New()

	cfg := wms.NewTenantConfig(channelID)
	cfg.Apply(wms.TenantConfigInput{
		Enabled:       boolPtr(true),
		APIKey:        strPtr("secret-api-key"),
		APIEndpoint:   strPtr("https://shop.picqer.com"),
		StorefrontURL: strPtr("https://shop.example.com"),
		SupportEmail:  strPtr("support@example.com"),
	})
	require.NoError(t, repo.Save(ctx, cfg))

	found, err := repo.FindByChannel(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, found.ID)
	assert.True(t, found.Enabled)
	assert.Equal(t, "secret-api-key", found.APIKey)
	assert.Equal(t, "https://shop.picqer.com", found.APIEndpoint)
	assert.NoError(t, found.CheckActive())
}

func TestGormTenantConfigRepository_SaveUpdatesByChannel(t *testing.T) {
	repo := NewGormTenantConfigRepository(newSQLiteDatabase(t).DB)
	ctx := context.Background()
	channelID := uuid.New()

	first := wms.NewTenantConfig(channelID)
	first.Apply(wms.TenantConfigInput{Enabled: boolPtr(true), APIKey: strPtr("first-key-1")})
	require.NoError(t, repo.Save(ctx, first))

	second := wms.NewTenantConfig(channelID)
	second.Apply(wms.TenantConfigInput{Enabled: boolPtr(false), APIKey: strPtr("second-key-2")})
	require.NoError(t, repo.Save(ctx, second))

	found, err := repo.FindByChannel(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.False(t, found.Enabled)
	assert.Equal(t, "second-key-2", found.APIKey)
	assert.ErrorIs(t, found.CheckActive(), wms.ErrNotEnabled)

	var count int64
	require.NoError(t, repo.db.Table("wms_tenant_configs").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
