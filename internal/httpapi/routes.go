// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"net/http"
	"sort"
)

// Route describes a single API endpoint. Exempt routes bypass the
// authentication middleware.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
	Exempt  bool
}

// key identifies a route by method and path.
func (r Route) key() string {
	return r.Method + " " + r.Path
}

// Registry holds the route table. Registering a route with the same
// method and path as an existing one replaces it, so callers can
// override individual endpoints without rebuilding the table.
type Registry struct {
	routes map[string]Route
}

// NewRegistry creates an empty route registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]Route)}
}

// Register adds or replaces a route.
func (reg *Registry) Register(route Route) {
	reg.routes[route.key()] = route
}

// SetExempt flips the exemption flag on an existing route. Returns false
// if no route matches the method and path.
func (reg *Registry) SetExempt(method, path string, exempt bool) bool {
	key := method + " " + path
	route, ok := reg.routes[key]
	if !ok {
		return false
	}
	route.Exempt = exempt
	reg.routes[key] = route
	return true
}

// Exempt reports whether the route for the given method and path
// bypasses authentication. Unknown routes are not exempt.
func (reg *Registry) Exempt(method, path string) bool {
	route, ok := reg.routes[method+" "+path]
	return ok && route.Exempt
}

// Routes returns all registered routes sorted by method and path.
func (reg *Registry) Routes() []Route {
	routes := make([]Route, 0, len(reg.routes))
	for _, route := range reg.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].key() < routes[j].key()
	})
	return routes
}

// Handler builds an http.Handler from the registered routes, wrapping
// non-exempt routes with the given authentication middleware.
func (reg *Registry) Handler(authn func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	for _, route := range reg.Routes() {
		var handler http.Handler = route.Handler
		if !route.Exempt && authn != nil {
			handler = authn(handler)
		}
		mux.Handle(route.Method+" "+route.Path, handler)
	}
	return mux
}
