package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func docsRouter(cfg DocsAccessConfig, auth gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/swagger/*any", DocsAccess(cfg, auth), func(c *gin.Context) { c.String(http.StatusOK, "docs") })
	return r
}

func docsRequest(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocsAccess_Open(t *testing.T) {
	w := docsRequest(docsRouter(DocsAccessConfig{}, nil), "203.0.113.9:4000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "docs", w.Body.String())
}

func TestDocsAccess_AllowList(t *testing.T) {
	r := docsRouter(DocsAccessConfig{AllowedIPs: []string{"10.0.0.0/8", "192.0.2.7", "not-an-ip"}}, nil)

	tests := []struct {
		remote string
		want   int
	}{
		{"10.20.30.40:5000", http.StatusOK},
		{"192.0.2.7:5000", http.StatusOK},
		{"192.0.2.8:5000", http.StatusForbidden},
		{"[2001:db8::1]:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, docsRequest(r, tt.remote).Code)
		})
	}
}

func TestDocsAccess_RequireAuth(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	allow := func(c *gin.Context) {}

	assert.Equal(t, http.StatusUnauthorized,
		docsRequest(docsRouter(DocsAccessConfig{RequireAuth: true}, deny), "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK,
		docsRequest(docsRouter(DocsAccessConfig{RequireAuth: true}, allow), "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK,
		docsRequest(docsRouter(DocsAccessConfig{}, deny), "10.0.0.1:1").Code, "auth only runs when required")
}

func TestParseAllowList(t *testing.T) {
	l := parseAllowList([]string{" 127.0.0.1 ", "::1", "172.16.0.0/12", "bogus/99"})
	assert.Len(t, l, 3)
	assert.True(t, l.contains(net.ParseIP("127.0.0.1")))
	assert.True(t, l.contains(net.ParseIP("::1")))
	assert.True(t, l.contains(net.ParseIP("172.20.1.1")))
	assert.False(t, l.contains(net.ParseIP("127.0.0.2")))
	assert.False(t, l.contains(nil))
}
