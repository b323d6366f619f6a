package wmssync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
)

// ConfigService manages the WMS settings of a channel and keeps the webhook
// registrations on the WMS side in line with them.
type ConfigService struct {
	configs    wms.TenantConfigRepository
	clients    wms.ClientFactory
	validate   *validator.Validate
	publicHost string
	pathPrefix string
	appName    string
	logger     *zap.Logger
}

// ConfigServiceConfig contains configuration for ConfigService
type ConfigServiceConfig struct {
	Configs wms.TenantConfigRepository
	Clients wms.ClientFactory
	// PublicHost is the externally reachable base URL of this service
	PublicHost string
	// PathPrefix is the first path segment of the webhook route
	PathPrefix string
	// AppName prefixes hook names
	AppName string
	Logger  *zap.Logger
}

// NewConfigService creates a new ConfigService
func NewConfigService(cfg ConfigServiceConfig) *ConfigService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pathPrefix := strings.Trim(cfg.PathPrefix, "/")
	if pathPrefix == "" {
		pathPrefix = "picqer"
	}
	appName := cfg.AppName
	if appName == "" {
		appName = "WMSSync"
	}
	return &ConfigService{
		configs:    cfg.Configs,
		clients:    cfg.Clients,
		validate:   NewValidator(),
		publicHost: strings.TrimRight(cfg.PublicHost, "/"),
		pathPrefix: pathPrefix,
		appName:    appName,
		logger:     logger,
	}
}

// NewValidator returns a validator that knows the wms_endpoint tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("wms_endpoint", isWMSEndpoint)
	return v
}

// isWMSEndpoint accepts an account URL with or without scheme, such as
// acme.picqer.com or https://acme.picqer.com/api/v1.
func isWMSEndpoint(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	return u.Hostname() != "" && u.RawQuery == "" && u.Fragment == "" && u.User == nil
}

// WebhookURL is the address the WMS posts the hooks of a channel to.
func (s *ConfigService) WebhookURL(channelToken string) string {
	return fmt.Sprintf("%s/%s/hooks/%s", s.publicHost, s.pathPrefix, url.PathEscape(channelToken))
}

// Get returns the config of a channel, or nil when none was saved yet.
func (s *ConfigService) Get(ctx context.Context, channelID uuid.UUID) (*wms.TenantConfig, error) {
	cfg, err := s.configs.FindByChannel(ctx, channelID)
	if errors.Is(err, wms.ErrNotConfigured) {
		return nil, nil
	}
	return cfg, err
}

// Upsert validates and saves the settings of a channel. After saving, the
// pooled client is dropped and webhooks are registered with the new
// credentials. Registration problems are logged, the save still succeeds.
func (s *ConfigService) Upsert(ctx context.Context, channel *commerce.Channel, in wms.TenantConfigInput) (*wms.TenantConfig, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cfg, err := s.configs.FindByChannel(ctx, channel.ID)
	switch {
	case errors.Is(err, wms.ErrNotConfigured):
		cfg = wms.NewTenantConfig(channel.ID)
	case err != nil:
		return nil, err
	}
	cfg.Apply(in)

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.clients.Invalidate(channel.ID)
	s.logger.Info("WMS config saved",
		zap.String("channel", channel.Token),
		zap.Bool("enabled", cfg.Enabled),
	)

	if cfg.CheckActive() == nil {
		if err := s.RegisterWebhooks(ctx, channel, cfg); err != nil {
			s.logger.Error("Failed to register webhooks",
				zap.String("channel", channel.Token),
				zap.Error(err),
			)
		}
	}
	return cfg, nil
}

// RegisterWebhooks makes sure every required event has an active hook with
// the current secret and address. A hook for the same event and address
// under another name carries an outdated secret: it is deactivated first,
// because the WMS allows one hook per event and address.
func (s *ConfigService) RegisterWebhooks(ctx context.Context, channel *commerce.Channel, cfg *wms.TenantConfig) error {
	client, err := s.clients.ClientFor(ctx, cfg)
	if err != nil {
		return err
	}
	hooks, err := client.ListWebhooks(ctx)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}

	address := s.WebhookURL(channel.Token)
	secret := client.WebhookSecret()
	var errs error
	for _, event := range wms.RegisteredEvents {
		name := wms.HookName(s.appName, event, secret)
		current := false
		for _, h := range hooks {
			if !h.Active || h.Event != event || h.Address != address {
				continue
			}
			if h.Name == name {
				current = true
				continue
			}
			s.logger.Info("Deactivating outdated webhook",
				zap.String("channel", channel.Token),
				zap.String("event", event),
				zap.Int("hook_id", h.IDHook),
			)
			if err := client.DeactivateWebhook(ctx, h.IDHook); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("deactivate hook %d: %w", h.IDHook, err))
			}
		}
		if current {
			continue
		}

		hook, err := client.CreateWebhook(ctx, wms.WebhookInput{
			Name:    name,
			Event:   event,
			Address: address,
			Secret:  secret,
		})
		switch {
		case errors.Is(err, wms.ErrConflict):
			s.logger.Info("Webhook already registered",
				zap.String("channel", channel.Token),
				zap.String("event", event),
			)
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("create hook for %s: %w", event, err))
		default:
			s.logger.Info("Registered webhook",
				zap.String("channel", channel.Token),
				zap.String("event", event),
				zap.Int("hook_id", hook.IDHook),
				zap.String("address", address),
			)
		}
	}
	return errs
}

// TestCredentialsInput holds credentials to check before saving them.
type TestCredentialsInput struct {
	APIKey        string `json:"api_key" validate:"required"`
	APIEndpoint   string `json:"api_endpoint" validate:"required,wms_endpoint"`
	StorefrontURL string `json:"storefront_url" validate:"required,url"`
	SupportEmail  string `json:"support_email" validate:"required,email"`
}

// TestCredentials reports whether the WMS accepts the credentials. Every
// failure, including invalid input, yields false.
func (s *ConfigService) TestCredentials(ctx context.Context, in TestCredentialsInput) bool {
	if err := s.validate.Struct(in); err != nil {
		s.logger.Debug("Credential test input rejected", zap.Error(err))
		return false
	}
	client, err := s.clients.Build(&wms.TenantConfig{
		APIKey:        in.APIKey,
		APIEndpoint:   in.APIEndpoint,
		StorefrontURL: in.StorefrontURL,
		SupportEmail:  in.SupportEmail,
	})
	if err != nil {
		return false
	}
	if _, err := client.GetStats(ctx); err != nil {
		s.logger.Info("WMS credential test failed", zap.Error(err))
		return false
	}
	return true
}
