package core

import (
	"fmt"
	"net/http"
	"strings"
)

// Route is an HTTP method and path pair
type Route struct {
	Method string
	Path   string
}

// String renders the route as "METHOD /path"
func (r Route) String() string {
	return r.Method + " " + r.Path
}

// ParseRoute parses a route written as "METHOD /path"
func ParseRoute(s string) (Route, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Route{}, fmt.Errorf("route %q: want \"METHOD /path\"", s)
	}

	method := strings.ToUpper(fields[0])
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		return Route{}, fmt.Errorf("route %q: unsupported method %s", s, fields[0])
	}

	if !strings.HasPrefix(fields[1], "/") {
		return Route{}, fmt.Errorf("route %q: path must start with /", s)
	}

	return Route{Method: method, Path: fields[1]}, nil
}

// Whitelist is the immutable set of routes that bypass token validation.
// It is built once at startup and is safe for concurrent use.
type Whitelist struct {
	routes map[Route]struct{}
}

// NewWhitelist creates a whitelist from the given routes
func NewWhitelist(routes ...Route) *Whitelist {
	w := &Whitelist{routes: make(map[Route]struct{}, len(routes))}
	for _, r := range routes {
		w.routes[normalize(r.Method, r.Path)] = struct{}{}
	}
	return w
}

// ParseWhitelist builds a whitelist from "METHOD /path" entries
func ParseWhitelist(entries []string) (*Whitelist, error) {
	routes := make([]Route, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		r, err := ParseRoute(e)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return NewWhitelist(routes...), nil
}

// Contains reports whether the method and path are whitelisted
func (w *Whitelist) Contains(method, path string) bool {
	if w == nil || path == "" {
		return false
	}
	_, ok := w.routes[normalize(method, path)]
	return ok
}

// Routes returns a copy of the whitelisted routes
func (w *Whitelist) Routes() []Route {
	if w == nil {
		return nil
	}
	routes := make([]Route, 0, len(w.routes))
	for r := range w.routes {
		routes = append(routes, r)
	}
	return routes
}

// Len returns the number of whitelisted routes
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.routes)
}

func normalize(method, path string) Route {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return Route{Method: strings.ToUpper(method), Path: path}
}
