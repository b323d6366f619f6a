package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/wmssync/internal/application/wmssync"
	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/scheduler"
	"github.com/erp/wmssync/internal/interfaces/http/dto"
	"github.com/erp/wmssync/internal/interfaces/http/middleware"
)

// ConfigManager reads and writes the WMS settings of a channel
type ConfigManager interface {
	Get(ctx context.Context, channelID uuid.UUID) (*wms.TenantConfig, error)
	Upsert(ctx context.Context, channel *commerce.Channel, in wms.TenantConfigInput) (*wms.TenantConfig, error)
	TestCredentials(ctx context.Context, in wmssync.TestCredentialsInput) bool
	WebhookURL(channelToken string) string
}

// FullSyncTrigger enqueues a full catalog sync
type FullSyncTrigger interface {
	Trigger(ctx context.Context, jc wms.JobContext) (*wmssync.FullSyncResult, error)
}

// QueueStatsProvider reports dispatcher counters
type QueueStatsProvider interface {
	Stats(ctx context.Context) scheduler.DispatcherStats
}

// WMSAdminHandler serves the JWT protected admin API of the integration
type WMSAdminHandler struct {
	BaseHandler
	channels commerce.ChannelResolver
	configs  ConfigManager
	fullSync FullSyncTrigger
	queue    QueueStatsProvider
}

// WMSAdminHandlerConfig contains configuration for WMSAdminHandler
type WMSAdminHandlerConfig struct {
	Channels commerce.ChannelResolver
	Configs  ConfigManager
	FullSync FullSyncTrigger
	Queue    QueueStatsProvider
}

// NewWMSAdminHandler creates a new WMSAdminHandler
func NewWMSAdminHandler(cfg WMSAdminHandlerConfig) *WMSAdminHandler {
	return &WMSAdminHandler{
		channels: cfg.Channels,
		configs:  cfg.Configs,
		fullSync: cfg.FullSync,
		queue:    cfg.Queue,
	}
}

// resolveChannel finds the channel the request acts on. It writes the error
// response itself and returns nil in that case.
func (h *WMSAdminHandler) resolveChannel(c *gin.Context) *commerce.Channel {
	token, ok := middleware.ChannelToken(c)
	if !ok {
		if middleware.GetJWTChannel(c) != "" {
			h.Forbidden(c, "Token is not valid for the requested channel")
			return nil
		}
		h.BadRequest(c, "Channel required: send "+middleware.ChannelHeader)
		return nil
	}
	channel, err := h.channels.FindChannelByToken(c.Request.Context(), token)
	switch {
	case errors.Is(err, commerce.ErrChannelNotFound):
		h.NotFound(c, "Channel not found")
		return nil
	case err != nil:
		h.InternalError(c, err)
		return nil
	}
	return channel
}

// GetConfig godoc
// @Summary      Get WMS configuration
// @Description  Returns the WMS settings of the channel with the API key masked
// @Tags         wms
// @Produce      json
// @Security     BearerAuth
// @Param        X-Channel-Token header string false "Channel token"
// @Success      200 {object} dto.Response{data=dto.WMSConfigResponse}
// @Router       /wms/config [get]
func (h *WMSAdminHandler) GetConfig(c *gin.Context) {
	channel := h.resolveChannel(c)
	if channel == nil {
		return
	}
	cfg, err := h.configs.Get(c.Request.Context(), channel.ID)
	if err != nil {
		h.InternalError(c, err)
		return
	}
	h.Success(c, dto.NewWMSConfigResponse(channel.ID, cfg, h.configs.WebhookURL(channel.Token)))
}

// UpsertConfig godoc
// @Summary      Save WMS configuration
// @Description  Creates or updates the WMS settings; omitted fields keep their value
// @Tags         wms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body wms.TenantConfigInput true "Settings"
// @Success      200 {object} dto.Response{data=dto.WMSConfigResponse}
// @Failure      400 {object} dto.Response
// @Router       /wms/config [put]
func (h *WMSAdminHandler) UpsertConfig(c *gin.Context) {
	channel := h.resolveChannel(c)
	if channel == nil {
		return
	}
	var in wms.TenantConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
		return
	}
	cfg, err := h.configs.Upsert(c.Request.Context(), channel, in)
	switch {
	case errors.Is(err, wmssync.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Validation failed", middleware.GetRequestID(c), []string{err.Error()}))
		return
	case err != nil:
		h.InternalError(c, err)
		return
	}
	h.Success(c, dto.NewWMSConfigResponse(channel.ID, cfg, h.configs.WebhookURL(channel.Token)))
}

// TestCredentials godoc
// @Summary      Test WMS credentials
// @Description  Checks the credentials against the WMS without saving them
// @Tags         wms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body wmssync.TestCredentialsInput true "Credentials"
// @Success      200 {object} dto.Response{data=dto.TestCredentialsResponse}
// @Router       /wms/config/test [post]
func (h *WMSAdminHandler) TestCredentials(c *gin.Context) {
	var in wmssync.TestCredentialsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
		return
	}
	ok := h.configs.TestCredentials(c.Request.Context(), in)
	h.Success(c, dto.TestCredentialsResponse{Success: ok})
}

// TriggerFullSync godoc
// @Summary      Trigger a full sync
// @Description  Enqueues push jobs for every active variant followed by a stock pull
// @Tags         wms
// @Produce      json
// @Security     BearerAuth
// @Success      202 {object} dto.Response{data=wmssync.FullSyncResult}
// @Router       /wms/sync/full [post]
func (h *WMSAdminHandler) TriggerFullSync(c *gin.Context) {
	channel := h.resolveChannel(c)
	if channel == nil {
		return
	}
	result, err := h.fullSync.Trigger(c.Request.Context(), wms.JobContext{
		ChannelID:    channel.ID,
		ChannelToken: channel.Token,
		ActorID:      middleware.GetJWTSubject(c),
	})
	if err != nil {
		h.InternalError(c, err)
		return
	}
	h.Accepted(c, result)
}

// QueueStats godoc
// @Summary      Sync queue statistics
// @Tags         wms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=scheduler.DispatcherStats}
// @Router       /wms/queue/stats [get]
func (h *WMSAdminHandler) QueueStats(c *gin.Context) {
	h.Success(c, h.queue.Stats(c.Request.Context()))
}
