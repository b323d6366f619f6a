package wms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// webhookSecretInfo is the HKDF info label for webhook secrets.
const webhookSecretInfo = "wmssync webhook secret v1"

// TenantConfig holds the WMS integration settings of one sales channel.
type TenantConfig struct {
	ID            uuid.UUID
	ChannelID     uuid.UUID
	Enabled       bool
	APIKey        string
	APIEndpoint   string
	StorefrontURL string
	SupportEmail  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTenantConfig creates a config for a channel.
func NewTenantConfig(channelID uuid.UUID) *TenantConfig {
	now := time.Now()
	return &TenantConfig{
		ID:        uuid.New(),
		ChannelID: channelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckActive returns nil when the channel may talk to the WMS. Otherwise it
// returns an error matching ErrConfiguration.
func (c *TenantConfig) CheckActive() error {
	if c == nil {
		return ErrNotConfigured
	}
	if !c.Enabled {
		return ErrNotEnabled
	}
	if strings.TrimSpace(c.APIKey) == "" ||
		strings.TrimSpace(c.APIEndpoint) == "" ||
		strings.TrimSpace(c.StorefrontURL) == "" ||
		strings.TrimSpace(c.SupportEmail) == "" {
		return ErrIncompleteCredentials
	}
	return nil
}

// WebhookSecret derives the shared secret used for webhook signatures. It is
// stable for a given API key and changes whenever the key is rotated, which
// is what drives webhook re-registration.
func (c *TenantConfig) WebhookSecret() string {
	if c == nil || c.APIKey == "" {
		return ""
	}
	r := hkdf.New(sha256.New, []byte(c.APIKey), []byte(c.ChannelID.String()), []byte(webhookSecretInfo))
	buf := make([]byte, 24)
	if _, err := io.ReadFull(r, buf); err != nil {
		// hkdf only fails once more than 255*HashLen bytes are read
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// Apply overwrites the mutable fields with the given input.
func (c *TenantConfig) Apply(in TenantConfigInput) {
	if in.Enabled != nil {
		c.Enabled = *in.Enabled
	}
	if in.APIKey != nil {
		c.APIKey = strings.TrimSpace(*in.APIKey)
	}
	if in.APIEndpoint != nil {
		c.APIEndpoint = strings.TrimSpace(*in.APIEndpoint)
	}
	if in.StorefrontURL != nil {
		c.StorefrontURL = strings.TrimSpace(*in.StorefrontURL)
	}
	if in.SupportEmail != nil {
		c.SupportEmail = strings.TrimSpace(*in.SupportEmail)
	}
	c.UpdatedAt = time.Now()
}

// TenantConfigInput is a partial update of a TenantConfig. Nil fields are left unchanged.
type TenantConfigInput struct {
	Enabled       *bool   `json:"enabled"`
	APIKey        *string `json:"api_key" validate:"omitempty,min=8"`
	APIEndpoint   *string `json:"api_endpoint" validate:"omitempty,wms_endpoint"`
	StorefrontURL *string `json:"storefront_url" validate:"omitempty,url"`
	SupportEmail  *string `json:"support_email" validate:"omitempty,email"`
}

// TenantConfigRepository persists TenantConfig per channel.
type TenantConfigRepository interface {
	// FindByChannel returns ErrNotConfigured when the channel has no config.
	FindByChannel(ctx context.Context, channelID uuid.UUID) (*TenantConfig, error)
	Save(ctx context.Context, cfg *TenantConfig) error
}
