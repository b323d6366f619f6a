// Package wmssync holds the application services that keep a commerce
// channel and its WMS account in sync: catalog export, stock reconciliation,
// order export, fulfillment from closed picklists and the full resync.
package wmssync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
)

// ErrInvalidInput is returned for administrative input that fails validation.
var ErrInvalidInput = errors.New("wmssync: invalid input")

// Tenant is a channel resolved for one operation: its current config and a
// client built from it.
type Tenant struct {
	Channel *commerce.Channel
	Config  *wms.TenantConfig
	Client  wms.Client
}

// tenantResolver derives a Tenant from scratch on every call. Nothing
// captured at enqueue time is trusted beyond the channel identity.
type tenantResolver struct {
	channels commerce.ChannelResolver
	configs  wms.TenantConfigRepository
	clients  wms.ClientFactory
}

// byChannelID resolves a channel that may have been deleted since a job was
// enqueued. A missing channel counts as an inactive integration.
func (r tenantResolver) byChannelID(ctx context.Context, channelID uuid.UUID) (*Tenant, error) {
	channel, err := r.channels.FindChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, commerce.ErrChannelNotFound) {
			return nil, fmt.Errorf("%w: channel %s no longer exists", wms.ErrNotConfigured, channelID)
		}
		return nil, err
	}
	return r.forChannel(ctx, channel)
}

// byToken resolves the channel of an inbound webhook. An unknown token is an
// authentication failure.
func (r tenantResolver) byToken(ctx context.Context, token string) (*commerce.Channel, error) {
	channel, err := r.channels.FindChannelByToken(ctx, token)
	if err != nil {
		if errors.Is(err, commerce.ErrChannelNotFound) {
			return nil, wms.ErrUnknownChannel
		}
		return nil, err
	}
	return channel, nil
}

func (r tenantResolver) forChannel(ctx context.Context, channel *commerce.Channel) (*Tenant, error) {
	cfg, err := r.configs.FindByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	client, err := r.clients.ClientFor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Tenant{Channel: channel, Config: cfg, Client: client}, nil
}
