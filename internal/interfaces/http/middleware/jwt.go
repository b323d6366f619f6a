package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/infrastructure/auth"
	"github.com/erp/wmssync/internal/infrastructure/logger"
	"github.com/erp/wmssync/internal/interfaces/http/dto"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTSubjectKey = "jwt_subject"
	JWTChannelKey = "jwt_channel"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ChannelHeader names the channel an admin request acts on when the token
// is not bound to one.
const ChannelHeader = "X-Channel-Token"

// TokenValidator validates admin bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	Validator TokenValidator
	Logger    *zap.Logger
}

// JWTAuthMiddleware requires a valid admin token on every request
func JWTAuthMiddleware(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, BearerPrefix)
		if !ok || tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		claims, err := cfg.Validator.ValidateToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTSubjectKey, claims.Subject)
		c.Set(JWTChannelKey, claims.Channel)

		if claims.Channel != "" {
			ctx, _ := logger.WithChannel(c.Request.Context(), logger.FromContext(c.Request.Context()), claims.Channel)
			c.Request = c.Request.WithContext(ctx)
		}

		cfg.Logger.Debug("JWT authentication successful",
			zap.String("subject", claims.Subject),
			zap.String("channel", claims.Channel),
		)
		c.Next()
	}
}

// handleAuthError aborts with 401 and a code describing the failure
func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, msg := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, msg = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrMissingSubject):
		code, msg = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, msg = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, msg, GetRequestID(c)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTSubject retrieves the subject of the admin token
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}

// GetJWTChannel retrieves the channel the admin token is bound to
func GetJWTChannel(c *gin.Context) string {
	return c.GetString(JWTChannelKey)
}

// ChannelToken resolves the channel an admin request acts on. A token bound
// to a channel wins over the header; ok is false when the header names a
// different channel than the token.
func ChannelToken(c *gin.Context) (token string, ok bool) {
	bound := GetJWTChannel(c)
	header := strings.TrimSpace(c.GetHeader(ChannelHeader))
	switch {
	case bound == "":
		return header, header != ""
	case header == "" || header == bound:
		return bound, true
	default:
		return "", false
	}
}
