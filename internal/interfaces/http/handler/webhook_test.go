package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/interfaces/http/dto"
	"github.com/erp/wmssync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	err    error
	events []wms.WebhookEvent
}

func (p *fakeProcessor) Handle(_ context.Context, ev wms.WebhookEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newWebhookRouter(p WebhookProcessor, limit int64) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/picqer/hooks/:token", NewWebhookHandler(p, limit).Receive)
	return router
}

func postHook(router *gin.Engine, token, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/picqer/hooks/"+token, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWebhookHandler_PassesRawBody(t *testing.T) {
	p := &fakeProcessor{}
	// Whitespace and key order must survive untouched for the HMAC.
	body := "{ \"event\":\"picklists.closed\",\n  \"data\": {\"idpicklist\": 9} }"

	w := postHook(newWebhookRouter(p, 0), "chan-token", body, "c2lnbmF0dXJl")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	require.Len(t, p.events, 1)
	assert.Equal(t, wms.WebhookEvent{
		ChannelToken: "chan-token",
		Signature:    "c2lnbmF0dXJl",
		RawBody:      []byte(body),
	}, p.events[0])
}

func TestWebhookHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid signature", wms.ErrInvalidSignature, http.StatusForbidden, dto.ErrCodeForbidden},
		{"unknown channel", fmt.Errorf("lookup: %w", wms.ErrUnknownChannel), http.StatusForbidden, dto.ErrCodeForbidden},
		{"malformed body", fmt.Errorf("%w: missing event", wms.ErrInvalidResponse), http.StatusBadRequest, dto.ErrCodeInvalidJSON},
		{"transient", wms.ErrPlatformUnavailable, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"local failure", errors.New("deadlock"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postHook(newWebhookRouter(&fakeProcessor{err: tt.err}, 0), "chan-token", `{"event":"x"}`, "sig")

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			assert.NotContains(t, resp.Error.Message, "deadlock")
		})
	}
}

func TestWebhookHandler_UnmappableDeliveryIsAcknowledged(t *testing.T) {
	p := &fakeProcessor{err: &wms.MappingError{Reason: "no order found for code ORD-404"}}
	w := postHook(newWebhookRouter(p, 0), "chan-token", `{"event":"picklists.closed"}`, "sig")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	p := &fakeProcessor{}
	w := postHook(newWebhookRouter(p, 16), "chan-token", strings.Repeat("x", 17), "sig")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, p.events)
}

func TestWebhookHandler_BodyLimitMiddleware(t *testing.T) {
	p := &fakeProcessor{}
	router := gin.New()
	router.POST("/picqer/hooks/:token", middleware.BodyLimit(8), NewWebhookHandler(p, 0).Receive)

	req := httptest.NewRequest(http.MethodPost, "/picqer/hooks/t", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, p.events)
}
