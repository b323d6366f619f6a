// Package router assembles the gin engine of the sync service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes mounts a set of endpoints on a gin group.
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// API mounts route sets under /api/{version} behind the admin middleware.
// Webhooks and health stay outside of it.
type API struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	routes     []Routes
}

// NewAPI creates the versioned admin API on engine.
func NewAPI(engine *gin.Engine, version string) *API {
	if version == "" {
		version = "v1"
	}
	return &API{engine: engine, version: version}
}

// Use adds middleware in front of every mounted route set.
func (a *API) Use(middleware ...gin.HandlerFunc) *API {
	a.middleware = append(a.middleware, middleware...)
	return a
}

// Mount queues route sets for Setup.
func (a *API) Mount(routes ...Routes) *API {
	a.routes = append(a.routes, routes...)
	return a
}

// Setup registers the queued route sets and returns the API group.
func (a *API) Setup() *gin.RouterGroup {
	group := a.engine.Group("/api/"+a.version, a.middleware...)
	for _, r := range a.routes {
		r.RegisterRoutes(group)
	}
	return group
}

// RouteSet is a prefixed group of endpoints with its own middleware.
// Nested sets inherit the middleware of their parent.
type RouteSet struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	nested     []*RouteSet
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteSet creates an empty set mounted at prefix.
func NewRouteSet(prefix string) *RouteSet {
	return &RouteSet{prefix: prefix}
}

// Use adds middleware to the set.
func (s *RouteSet) Use(middleware ...gin.HandlerFunc) *RouteSet {
	s.middleware = append(s.middleware, middleware...)
	return s
}

// Handle adds an endpoint.
func (s *RouteSet) Handle(method, path string, handlers ...gin.HandlerFunc) *RouteSet {
	s.routes = append(s.routes, route{method: method, path: path, handlers: handlers})
	return s
}

func (s *RouteSet) GET(path string, handlers ...gin.HandlerFunc) *RouteSet {
	return s.Handle(http.MethodGet, path, handlers...)
}

func (s *RouteSet) POST(path string, handlers ...gin.HandlerFunc) *RouteSet {
	return s.Handle(http.MethodPost, path, handlers...)
}

func (s *RouteSet) PUT(path string, handlers ...gin.HandlerFunc) *RouteSet {
	return s.Handle(http.MethodPut, path, handlers...)
}

// Nest creates a set below this one.
func (s *RouteSet) Nest(prefix string) *RouteSet {
	child := NewRouteSet(prefix)
	s.nested = append(s.nested, child)
	return child
}

// RegisterRoutes implements Routes.
func (s *RouteSet) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(s.prefix, s.middleware...)
	for _, r := range s.routes {
		group.Handle(r.method, r.path, r.handlers...)
	}
	for _, child := range s.nested {
		child.RegisterRoutes(group)
	}
}
