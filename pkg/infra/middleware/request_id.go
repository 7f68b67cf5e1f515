// Package middleware provides gin middleware shared by the HTTP API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-docqa/pkg/id"
)

// HeaderXRequestID is the header carrying the request ID.
const HeaderXRequestID = "X-Request-ID"

const ginRequestIDKey = "request_id"

type requestIDKey struct{}

// RequestIDConfig defines the config for RequestID middleware.
type RequestIDConfig struct {
	// Header is the header name to use for request ID.
	Header string
	// Generator generates request IDs. Default: ULID.
	Generator func() string
}

// RequestID returns a middleware that adds a unique request ID to each request.
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig returns a RequestID middleware with custom config.
// An incoming header value is reused.
func RequestIDWithConfig(config RequestIDConfig) gin.HandlerFunc {
	if config.Header == "" {
		config.Header = HeaderXRequestID
	}
	if config.Generator == nil {
		config.Generator = id.NewRequestID
	}

	return func(c *gin.Context) {
		rid := c.GetHeader(config.Header)
		if rid == "" {
			rid = config.Generator()
		}

		c.Header(config.Header, rid)
		c.Set(ginRequestIDKey, rid)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))

		c.Next()
	}
}

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestIDFrom returns the request ID stored in ctx.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// GetRequestID returns the request ID of the gin context, or "".
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ginRequestIDKey)
}
