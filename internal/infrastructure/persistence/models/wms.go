package models

import (
	"time"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/google/uuid"
)

// TenantConfigModel is the persistence model for wms.TenantConfig.
type TenantConfigModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	ChannelID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_wms_tenant_configs_channel"`
	Enabled       bool      `gorm:"not null;default:false"`
	APIKey        string    `gorm:"type:varchar(255)"`
	APIEndpoint   string    `gorm:"type:varchar(255)"`
	StorefrontURL string    `gorm:"type:varchar(255)"`
	SupportEmail  string    `gorm:"type:varchar(255)"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantConfigModel) TableName() string {
	return "wms_tenant_configs"
}

// ToDomain converts the persistence model to a domain TenantConfig.
func (m *TenantConfigModel) ToDomain() *wms.TenantConfig {
	return &wms.TenantConfig{
		ID:            m.ID,
		ChannelID:     m.ChannelID,
		Enabled:       m.Enabled,
		APIKey:        m.APIKey,
		APIEndpoint:   m.APIEndpoint,
		StorefrontURL: m.StorefrontURL,
		SupportEmail:  m.SupportEmail,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain TenantConfig.
func (m *TenantConfigModel) FromDomain(c *wms.TenantConfig) {
	m.ID = c.ID
	m.ChannelID = c.ChannelID
	m.Enabled = c.Enabled
	m.APIKey = c.APIKey
	m.APIEndpoint = c.APIEndpoint
	m.StorefrontURL = c.StorefrontURL
	m.SupportEmail = c.SupportEmail
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// TenantConfigModelFromDomain creates a new persistence model from a domain TenantConfig.
func TenantConfigModelFromDomain(c *wms.TenantConfig) *TenantConfigModel {
	m := &TenantConfigModel{}
	m.FromDomain(c)
	return m
}
