package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantConfigRepository implements wms.TenantConfigRepository using GORM
type GormTenantConfigRepository struct {
	db *gorm.DB
}

var _ wms.TenantConfigRepository = (*GormTenantConfigRepository)(nil)

// NewGormTenantConfigRepository creates a new GormTenantConfigRepository
func NewGormTenantConfigRepository(db *gorm.DB) *GormTenantConfigRepository {
	return &GormTenantConfigRepository{db: db}
}

// FindByChannel returns the config of a channel, or wms.ErrNotConfigured.
func (r *GormTenantConfigRepository) FindByChannel(ctx context.Context, channelID uuid.UUID) (*wms.TenantConfig, error) {
	var model models.TenantConfigModel
	if err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wms.ErrNotConfigured
		}
		return nil, fmt.Errorf("find tenant config: %w", err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates the config of a channel. The channel is the
// natural key: saving a fresh config for a configured channel overwrites the
// stored values and adopts the stored ID.
func (r *GormTenantConfigRepository) Save(ctx context.Context, cfg *wms.TenantConfig) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.TenantConfigModel
		err := tx.Where("channel_id = ?", cfg.ChannelID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(models.TenantConfigModelFromDomain(cfg)).Error
		case err != nil:
			return err
		}
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
		return tx.Save(models.TenantConfigModelFromDomain(cfg)).Error
	})
	if err != nil {
		return fmt.Errorf("save tenant config: %w", err)
	}
	return nil
}
