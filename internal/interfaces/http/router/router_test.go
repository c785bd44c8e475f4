package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/auth"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/handler"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

// withClaims fakes OperatorAuth with the given permissions
func withClaims(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &auth.Claims{Permissions: perms})
		c.Set(middleware.TenantIDKey, uuid.New())
		c.Next()
	}
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithMiddleware(withClaims("ping")))

	group := NewDomainGroup("test", "/test").
		GET("/ping", "ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") }).
		POST("/secret", "admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = serve(engine, http.MethodPost, "/api/v1/test/secret")
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, []Route{
		{Group: "test", Method: http.MethodGet, Path: "/api/v1/test/ping", Permission: "ping"},
		{Group: "test", Method: http.MethodPost, Path: "/api/v1/test/secret", Permission: "admin"},
	}, r.Routes())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("loans", "/loans")
		assert.Equal(t, "loans", g.Name())
		assert.Equal(t, "/loans", g.Prefix())
	})

	t.Run("open route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").GET("", "", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		routes := g.RegisterRoutes(engine.Group("/api/v1"))
		require.Len(t, routes, 1)
		assert.Equal(t, "/api/v1/test", routes[0].Path)

		w := serve(engine, http.MethodGet, "/api/v1/test")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("group middleware runs before routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").
			Use(func(c *gin.Context) { c.Header("X-Group", "yes"); c.Next() }).
			GET("/x", "", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group(""))

		w := serve(engine, http.MethodGet, "/test/x")
		assert.Equal(t, "yes", w.Header().Get("X-Group"))
	})

	t.Run("permission without claims is unauthorized", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").GET("/x", "loan:read", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group(""))

		w := serve(engine, http.MethodGet, "/test/x")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func newLendingHandlers() Handlers {
	now := func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	return Handlers{
		Loans:       handler.NewLoanHandler(nil, now),
		Payments:    handler.NewPaymentHandler(nil, now),
		Delinquency: handler.NewDelinquencyHandler(nil, now),
		Sweeps:      handler.NewSweepHandler(nil, now),
		Reports:     handler.NewReportHandler(nil, now),
	}
}

func TestLendingGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(LendingGroups(newLendingHandlers())...).Setup()

	perms := map[string]string{}
	for _, route := range r.Routes() {
		perms[route.Method+" "+route.Path] = route.Permission
	}
	assert.Len(t, perms, 16)
	assert.Equal(t, auth.PermissionLoanDisburse, perms["POST /api/v1/loans"])
	assert.Equal(t, auth.PermissionPaymentPost, perms["POST /api/v1/loans/:id/payments"])
	assert.Equal(t, auth.PermissionWriteOff, perms["POST /api/v1/loans/:id/write-off"])
	assert.Equal(t, auth.PermissionLegalClose, perms["POST /api/v1/loans/:id/legal-case/close"])
	assert.Equal(t, auth.PermissionSweepRun, perms["POST /api/v1/sweeps"])
	assert.Equal(t, auth.PermissionReportRead, perms["GET /api/v1/reports/buckets"])

	for _, route := range r.Routes() {
		assert.NotEmpty(t, route.Permission, "%s %s has no permission", route.Method, route.Path)
	}
}

func TestLendingGroups_PermissionIsEnforced(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithMiddleware(withClaims(auth.PermissionLoanRead))).
		Register(LendingGroups(newLendingHandlers())...).
		Setup()

	w := serve(engine, http.MethodPost, "/api/v1/loans/"+uuid.NewString()+"/write-off")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(engine, http.MethodPost, "/api/v1/sweeps")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
