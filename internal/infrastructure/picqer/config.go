package picqer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/wmssync/internal/domain/wms"
)

// Config holds the credentials of one Picqer account
type Config struct {
	// APIEndpoint is the account URL, e.g. https://acme.picqer.com
	APIEndpoint string
	// APIKey authenticates as HTTP basic auth user
	APIKey string
	// StorefrontURL and SupportEmail identify the integration in the User-Agent
	StorefrontURL string
	SupportEmail  string
	// WebhookSecret signs inbound webhooks
	WebhookSecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// AppName prefixes the User-Agent and hook names
	AppName string
}

// Errors for Picqer configuration
var (
	ErrConfigMissingAPIKey   = errors.New("picqer: api key is required")
	ErrConfigMissingEndpoint = errors.New("picqer: api endpoint is required")
)

// DefaultAppName identifies this integration towards Picqer
const DefaultAppName = "WMSSync"

// ConfigFromTenant builds a client config from a channel's settings.
func ConfigFromTenant(cfg *wms.TenantConfig, timeoutSeconds int) *Config {
	return &Config{
		APIEndpoint:    cfg.APIEndpoint,
		APIKey:         cfg.APIKey,
		StorefrontURL:  cfg.StorefrontURL,
		SupportEmail:   cfg.SupportEmail,
		WebhookSecret:  cfg.WebhookSecret(),
		TimeoutSeconds: timeoutSeconds,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.APIEndpoint == "" {
		return ErrConfigMissingEndpoint
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	return nil
}

// BaseURL returns the versioned API root for the endpoint.
func (c *Config) BaseURL() string {
	endpoint := strings.TrimRight(strings.TrimSpace(c.APIEndpoint), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/api/v1")
	return endpoint + "/api/v1"
}

// UserAgent returns the identification Picqer asks integrations to send.
func (c *Config) UserAgent() string {
	return fmt.Sprintf("%s (%s - %s)", c.AppName, c.StorefrontURL, c.SupportEmail)
}

// Sign computes the X-Picqer-Signature value for a raw body:
// base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the signature of body against the given value in
// constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
