// Package router wires the loan engine handlers into versioned route groups.
package router

import (
	"net/http"
	"path"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
)

// Route describes one registered endpoint
type Route struct {
	Group      string
	Method     string
	Path       string
	Permission string
}

// RouteRegistrar registers its routes under rg and reports them
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup) []Route
}

// Router mounts registrars under /api/{version}
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
	routes     []Route
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix, e.g. "v1"
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMiddleware adds middleware to the API group only. Health and metrics
// endpoints registered on the engine directly are not affected.
func WithMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrar for Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup creates the API group and registers every queued registrar
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		r.routes = append(r.routes, registrar.RegisterRoutes(api)...)
	}
	sort.Slice(r.routes, func(i, j int) bool {
		if r.routes[i].Path != r.routes[j].Path {
			return r.routes[i].Path < r.routes[j].Path
		}
		return r.routes[i].Method < r.routes[j].Method
	})
}

// Routes lists the routes registered by Setup, sorted by path
func (r *Router) Routes() []Route {
	return r.routes
}

// DomainGroup collects the routes of one resource. Each route may name the
// operator permission it requires.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []routeDefinition
}

type routeDefinition struct {
	method     string
	path       string
	permission string
	handlers   []gin.HandlerFunc
}

// NewDomainGroup creates a group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, mw...)
	return dg
}

// Handle adds a route. An empty permission leaves the route open to any
// authenticated operator.
func (dg *DomainGroup) Handle(method, relativePath, permission string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{
		method:     method,
		path:       relativePath,
		permission: permission,
		handlers:   handlers,
	})
	return dg
}

// GET adds a GET route requiring permission
func (dg *DomainGroup) GET(relativePath, permission string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, relativePath, permission, handlers...)
}

// POST adds a POST route requiring permission
func (dg *DomainGroup) POST(relativePath, permission string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, relativePath, permission, handlers...)
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) []Route {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}

	routes := make([]Route, 0, len(dg.routes))
	for _, rd := range dg.routes {
		handlers := rd.handlers
		if rd.permission != "" {
			handlers = append([]gin.HandlerFunc{middleware.RequirePermission(rd.permission)}, handlers...)
		}
		group.Handle(rd.method, rd.path, handlers...)
		routes = append(routes, Route{
			Group:      dg.name,
			Method:     rd.method,
			Path:       joinPaths(group.BasePath(), rd.path),
			Permission: rd.permission,
		})
	}
	return routes
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

func joinPaths(base, relative string) string {
	if relative == "" {
		return base
	}
	return path.Join(base, relative)
}
