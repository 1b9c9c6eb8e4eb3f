// Package middleware provides HTTP middleware for the Promptrix
// service.
//
// The auth middleware extracts a bearer token from the Authorization
// header, validates it with the configured AuthProvider, and stores
// the resulting AuthInfo in the Gin context for downstream handlers.
//
// With NopAuthProvider (the default) every request is authenticated as
// "local-user", so the service runs without any auth infrastructure.
// Setting PROMPTRIX_API_TOKEN switches to StaticTokenProvider, which
// requires the exact token on every request.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrUnauthorized is returned by AuthProviders for invalid tokens.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo describes the authenticated caller of a request.
type AuthInfo struct {
	UserID string
}

// AuthProvider validates bearer tokens. Validate must be safe for
// concurrent calls.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider authenticates every request, including tokenless
// ones, as a local user. Default for single-operator deployments.
type NopAuthProvider struct{}

func (NopAuthProvider) Validate(context.Context, string) (*AuthInfo, error) {
	return &AuthInfo{UserID: "local-user"}, nil
}

// StaticTokenProvider accepts exactly one pre-shared token.
type StaticTokenProvider struct {
	Token string
}

func (p StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		return nil, ErrUnauthorized
	}
	return &AuthInfo{UserID: "api-token"}, nil
}

// authInfoKey is the Gin context key for storing AuthInfo. A typed key
// string prevents collisions with other context values.
const authInfoKey = "promptrix_auth_info"

// SetAuthInfo stores the authenticated caller in the Gin context.
// Called by AuthMiddleware after successful authentication.
func SetAuthInfo(c *gin.Context, info *AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated caller from the Gin context.
// Returns nil when the request was not authenticated, or when the
// stored value has the wrong type.
func GetAuthInfo(c *gin.Context) *AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// AuthMiddleware creates a Gin middleware that authenticates requests.
//
// The middleware expects tokens in the Authorization header as
// "Bearer <token>". A missing or malformed header yields an empty
// token, which NopAuthProvider accepts and StaticTokenProvider
// rejects. Validation failures abort the request with 401; every other
// provider error is also treated as an auth failure.
func AuthMiddleware(provider AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// extractBearerToken parses the Authorization header, expecting the
// "Bearer <token>" form. Returns the empty string when the header is
// missing or malformed. The scheme is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
