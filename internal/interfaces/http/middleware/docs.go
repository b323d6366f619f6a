package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/wmssync/internal/interfaces/http/dto"
)

// DocsAccessConfig restricts who may read the admin API documentation
type DocsAccessConfig struct {
	RequireAuth bool     // require a valid admin token
	AllowedIPs  []string // IPs or CIDRs, empty allows every client
}

// DocsAccess guards the documentation endpoint. The client IP is checked
// against the allow list first, then auth runs when RequireAuth is set.
// Entries that do not parse are ignored.
func DocsAccess(cfg DocsAccessConfig, auth gin.HandlerFunc) gin.HandlerFunc {
	allow := parseAllowList(cfg.AllowedIPs)
	restricted := len(cfg.AllowedIPs) > 0

	return func(c *gin.Context) {
		if restricted && !allow.contains(net.ParseIP(c.ClientIP())) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Access to API documentation is restricted", GetRequestID(c)))
			return
		}
		if cfg.RequireAuth && auth != nil {
			if auth(c); c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

type allowList []*net.IPNet

func parseAllowList(entries []string) allowList {
	var nets allowList
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			entry += "/" + strconv.Itoa(bits)
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func (l allowList) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range l {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
