package picqer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/wmssync/internal/domain/wms"
)

// ClientCacheConfig configures the pooled client factory
type ClientCacheConfig struct {
	TTL            time.Duration
	TimeoutSeconds int
	AppName        string
}

// ClientCache builds Picqer clients per channel and pools them. Pooled
// clients are keyed by a fingerprint of the credentials they were built
// from, so a config change always yields a fresh client.
type ClientCache struct {
	cfg        ClientCacheConfig
	cache      *gocache.Cache
	group      singleflight.Group
	httpClient *http.Client
	logger     *zap.Logger
}

type cachedClient struct {
	fingerprint string
	client      *Client
}

// Ensure ClientCache implements wms.ClientFactory
var _ wms.ClientFactory = (*ClientCache)(nil)

// NewClientCache creates a client factory sharing one HTTP transport
func NewClientCache(cfg ClientCacheConfig, logger *zap.Logger) *ClientCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientCache{
		cfg:   cfg,
		cache: gocache.New(cfg.TTL, 2*cfg.TTL),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// ClientFor returns a client for the channel's current credentials
func (f *ClientCache) ClientFor(ctx context.Context, cfg *wms.TenantConfig) (wms.Client, error) {
	if err := cfg.CheckActive(); err != nil {
		return nil, err
	}
	key := cfg.ChannelID.String()
	fp := fingerprint(cfg)

	if v, ok := f.cache.Get(key); ok {
		if entry := v.(*cachedClient); entry.fingerprint == fp {
			return entry.client, nil
		}
	}

	v, err, _ := f.group.Do(key+":"+fp, func() (any, error) {
		clientCfg := ConfigFromTenant(cfg, f.cfg.TimeoutSeconds)
		clientCfg.AppName = f.cfg.AppName
		client, err := NewClient(clientCfg, f.httpClient)
		if err != nil {
			return nil, err
		}
		f.cache.SetDefault(key, &cachedClient{fingerprint: fp, client: client})
		f.logger.Debug("picqer client created", zap.String("channel_id", key))
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// Build returns a client that is not pooled. Only the credentials are
// checked, the enabled flag is ignored.
func (f *ClientCache) Build(cfg *wms.TenantConfig) (wms.Client, error) {
	if cfg == nil {
		return nil, wms.ErrNotConfigured
	}
	clientCfg := ConfigFromTenant(cfg, f.cfg.TimeoutSeconds)
	clientCfg.AppName = f.cfg.AppName
	return NewClient(clientCfg, f.httpClient)
}

// Invalidate drops the pooled client of a channel
func (f *ClientCache) Invalidate(channelID uuid.UUID) {
	f.cache.Delete(channelID.String())
}

func fingerprint(cfg *wms.TenantConfig) string {
	h := sha256.New()
	for _, part := range []string{cfg.APIEndpoint, cfg.APIKey, cfg.StorefrontURL, cfg.SupportEmail} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
