package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/logger"
	"github.com/erp/wmssync/internal/interfaces/http/dto"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Picqer-Signature"

// DefaultWebhookBodyLimit caps webhook bodies when no limit is configured.
const DefaultWebhookBodyLimit int64 = 1 << 20

// WebhookProcessor authenticates and routes one webhook delivery
type WebhookProcessor interface {
	Handle(ctx context.Context, ev wms.WebhookEvent) error
}

// WebhookHandler receives the WMS webhooks of all channels
type WebhookHandler struct {
	BaseHandler
	processor    WebhookProcessor
	maxBodyBytes int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor WebhookProcessor, maxBodyBytes int64) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultWebhookBodyLimit
	}
	return &WebhookHandler{processor: processor, maxBodyBytes: maxBodyBytes}
}

// Receive handles POST /{prefix}/hooks/:token.
//
// The body is read as raw bytes: the signature covers exactly what was
// sent, so it must never be decoded and re-encoded before verification.
// Authentication failures answer 403 and a malformed body 400. A delivery
// that cannot be mapped, such as a picklist for an unknown order, is logged
// and acknowledged since redelivering it cannot succeed. Any other failure
// answers 500 so the WMS delivers the hook again.
func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Param("token")
	ctx, log := logger.WithChannel(ctx, logger.FromContext(ctx), token)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Webhook body too large")
			return
		}
		h.BadRequest(c, "Failed to read webhook body")
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Webhook body too large")
		return
	}

	err = h.processor.Handle(ctx, wms.WebhookEvent{
		ChannelToken: token,
		Signature:    c.GetHeader(SignatureHeader),
		RawBody:      body,
	})
	switch {
	case err == nil:
		h.Success(c, nil)
	case errors.Is(err, wms.ErrAuthentication):
		log.Warn("Webhook rejected", zap.Error(err))
		h.Forbidden(c, "Webhook could not be authenticated")
	case errors.Is(err, wms.ErrInvalidResponse):
		log.Warn("Malformed webhook body", zap.Error(err))
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed webhook body")
	case errors.Is(err, wms.ErrMapping):
		log.Warn("Webhook refers to data unknown locally, acknowledging", zap.Error(err))
		h.Success(c, nil)
	default:
		h.InternalError(c, err)
	}
}
