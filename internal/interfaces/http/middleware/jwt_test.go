package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wmssync/internal/infrastructure/auth"
	"github.com/erp/wmssync/internal/infrastructure/config"
	"github.com/erp/wmssync/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "test-issuer",
	})
	require.NoError(t, err)
	return svc
}

func newTestToken(t *testing.T, svc *auth.JWTService, channel string) string {
	t.Helper()
	token, err := svc.GenerateToken(auth.GenerateTokenInput{Subject: "ops@example.com", Channel: channel})
	require.NoError(t, err)
	return token
}

func newJWTRouter(t *testing.T, svc *auth.JWTService) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(RequestID(), JWTAuthMiddleware(JWTMiddlewareConfig{Validator: svc}))
	router.GET("/test", func(c *gin.Context) {
		token, ok := ChannelToken(c)
		c.JSON(http.StatusOK, gin.H{
			"subject": GetJWTSubject(c),
			"channel": token,
			"ok":      ok,
		})
	})
	return router
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService(t)
	router := newJWTRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+newTestToken(t, svc, "web"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ops@example.com", body["subject"])
	assert.Equal(t, "web", body["channel"])
	assert.Equal(t, true, body["ok"])
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService(t)
	router := newJWTRouter(t, svc)

	expired, err := svc.GenerateToken(auth.GenerateTokenInput{Subject: "ops", TTL: time.Nanosecond})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", dto.ErrCodeTokenInvalid},
		{"empty bearer", "Bearer ", dto.ErrCodeTokenInvalid},
		{"garbage", "Bearer not-a-token", dto.ErrCodeTokenInvalid},
		{"expired", "Bearer " + expired, dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestChannelToken(t *testing.T) {
	svc := newTestJWTService(t)
	router := newJWTRouter(t, svc)

	tests := []struct {
		name        string
		bound       string
		header      string
		wantChannel string
		wantOK      bool
	}{
		{"header only", "", "web", "web", true},
		{"neither", "", "", "", false},
		{"bound only", "web", "", "web", true},
		{"bound and same header", "web", "web", "web", true},
		{"bound and other header", "web", "b2b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer "+newTestToken(t, svc, tt.bound))
			if tt.header != "" {
				req.Header.Set(ChannelHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantChannel, body["channel"])
			assert.Equal(t, tt.wantOK, body["ok"])
		})
	}
}
