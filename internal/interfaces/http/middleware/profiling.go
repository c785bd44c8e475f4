package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
)

// Profiling tags the request's goroutine with Pyroscope labels for the
// controller, route, method and tenant. Labels only show up in profiles
// when a profiler is running; otherwise the cost is a context copy.
func Profiling() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		tenant := ""
		if tenantID, ok := GetTenantID(c); ok {
			tenant = tenantID.String()
		}
		labels := telemetry.HTTPRequestLabels(controllerOf(route), route, c.Request.Method, tenant)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerOf names the resource of an API route,
// e.g. "/api/v1/loans/:id/payments" is "loans"
func controllerOf(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "api" {
			return parts[i+2]
		}
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
