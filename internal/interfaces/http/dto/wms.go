package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erp/wmssync/internal/domain/wms"
)

// WMSConfigResponse is the admin view of a channel's WMS settings. The API
// key is never returned in full.
type WMSConfigResponse struct {
	ChannelID     uuid.UUID `json:"channel_id"`
	Enabled       bool      `json:"enabled"`
	APIKey        string    `json:"api_key"`
	APIEndpoint   string    `json:"api_endpoint"`
	StorefrontURL string    `json:"storefront_url"`
	SupportEmail  string    `json:"support_email"`
	WebhookURL    string    `json:"webhook_url"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// NewWMSConfigResponse converts a stored config. A nil config renders as a
// disabled, empty configuration.
func NewWMSConfigResponse(channelID uuid.UUID, cfg *wms.TenantConfig, webhookURL string) WMSConfigResponse {
	resp := WMSConfigResponse{ChannelID: channelID, WebhookURL: webhookURL}
	if cfg == nil {
		return resp
	}
	resp.Enabled = cfg.Enabled
	resp.APIKey = MaskSecret(cfg.APIKey)
	resp.APIEndpoint = cfg.APIEndpoint
	resp.StorefrontURL = cfg.StorefrontURL
	resp.SupportEmail = cfg.SupportEmail
	resp.UpdatedAt = cfg.UpdatedAt
	return resp
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// TestCredentialsResponse reports whether the WMS accepted the credentials.
type TestCredentialsResponse struct {
	Success bool `json:"success"`
}
