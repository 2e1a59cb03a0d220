package middleware

import (
	"net/http"

	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/firesafe/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader is the header clients use to make settle and
// return calls retry-safe.
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds the header so keys stay cheap to store
const MaxIdempotencyKeyLength = 255

// idempotencyKeyCtx is the gin context key holding the validated key
const idempotencyKeyCtx = "idempotency_key"

// IdempotencyKey validates the Idempotency-Key header and carries it into
// the request context so logs and handlers can see it.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest,
				"Idempotency-Key header is too long",
				logger.GetRequestID(c.Request.Context()),
			))
			return
		}
		c.Set(idempotencyKeyCtx, key)
		c.Request = c.Request.WithContext(logger.WithIdempotencyKey(c.Request.Context(), key))
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key or ""
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyCtx)
}

// Secure adds the baseline security headers of a JSON API
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// NoRoute answers unknown paths with the standard error body
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound,
			"No route for "+c.Request.Method+" "+c.Request.URL.Path,
			logger.GetRequestID(c.Request.Context()),
		))
	}
}
