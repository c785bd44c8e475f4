package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request with otelgin. Requests for
// skipPaths are not traced.
func Tracing(serviceName string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool { return !skip[r.URL.Path] }),
	)
}

// SpanEnricher adds request, tenant, operator and loan attributes to the
// request span and marks it failed on 5xx responses. Register it after
// OperatorAuth on authenticated groups.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		attrs := []attribute.KeyValue{attribute.String("request_id", GetRequestID(c))}
		if tenantID, ok := GetTenantID(c); ok {
			attrs = append(attrs, attribute.String("tenant_id", tenantID.String()))
		}
		if operatorID, ok := GetOperatorID(c); ok {
			attrs = append(attrs, attribute.String("operator_id", operatorID.String()))
		}
		if loanID := c.Param("id"); loanID != "" {
			attrs = append(attrs, attribute.String("loan_id", loanID))
		}
		span.SetAttributes(attrs...)

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last().Err)
		}
	}
}
