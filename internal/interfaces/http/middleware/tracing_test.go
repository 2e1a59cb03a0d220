package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/firesafe/ledger/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func tracedRouter(status int) *gin.Engine {
	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: true, ServiceName: "ledger-test"}))
	router.Use(logger.GinMiddleware(zap.NewNop()))
	router.Use(IdempotencyKey())
	router.Use(SpanEnricher())
	router.POST("/api/v1/ledger/sales/settle", func(c *gin.Context) {
		c.JSON(status, gin.H{"ok": status < 400})
	})
	return router
}

func findSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestTracing_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_SpanCarriesRequestAndIdempotencyKey(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(http.StatusOK)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/sales/settle", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	req.Header.Set(IdempotencyKeyHeader, "settle-42")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	span := findSpan(t, sr, "POST /api/v1/ledger/sales/settle")

	id, ok := spanAttr(span, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-abc", id)

	key, ok := spanAttr(span, "idempotency_key")
	require.True(t, ok)
	assert.Equal(t, "settle-42", key)
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestTracing_ClientErrorMarksSpan(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(http.StatusUnprocessableEntity)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/sales/settle", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	span := findSpan(t, sr, "POST /api/v1/ledger/sales/settle")
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, http.StatusText(http.StatusUnprocessableEntity), span.Status().Description)
}
