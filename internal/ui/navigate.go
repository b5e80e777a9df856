package ui

import "sync"

// Routes a controller can send the user to
const (
	RouteAgents     = "/agents"
	RouteHome       = "/home"
	RouteLogin      = "/auth/login"
	RouteSignup     = "/auth/signup"
	RouteCheckEmail = "/auth/check-email"
)

// Navigator moves the user to another page
type Navigator interface {
	Navigate(route string)
}

// RouteRecorder remembers where navigation went instead of going there
type RouteRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *RouteRecorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

// Routes returns every route navigated to, oldest first
func (r *RouteRecorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

// Current returns the latest route, or "" if none
func (r *RouteRecorder) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}
