package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attrsOf(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing(t *testing.T) {
	recorder := withRecorder(t)
	tenantID := uuid.New()

	r := newEngine(RequestID(), Tracing("loan-engine", "/health"), func(c *gin.Context) {
		c.Set(TenantIDKey, tenantID)
		c.Next()
	}, SpanEnricher())
	r.GET("/health", okHandler)
	r.GET("/api/v1/loans/:id", okHandler)
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorder.Ended(), "health checks are not traced")

	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/loans/L-1", nil))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attrsOf(spans[0])
	assert.Equal(t, tenantID.String(), attrs["tenant_id"].AsString())
	assert.Equal(t, "L-1", attrs["loan_id"].AsString())
	assert.NotEmpty(t, attrs["request_id"].AsString())

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	spans = recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestSpanEnricher_NoSpan(t *testing.T) {
	r := newEngine(SpanEnricher())
	r.GET("/x", okHandler)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
