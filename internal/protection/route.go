// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package protection

// RouteFlags are the per-route exemption flags consulted by the dispatcher.
type RouteFlags struct {
	// WAFExempt skips the attack scanner for this route.
	WAFExempt bool
	// RateLimitExempt skips the rate limiter for this route.
	RateLimitExempt bool
}

// RouteTable maps request paths to their exemption flags. It is built at
// startup and read-only afterwards, so lookups need no synchronization.
type RouteTable struct {
	routes map[string]RouteFlags
}

func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[string]RouteFlags)}
}

// Set registers the flags of a route path. Paths are matched exactly against
// the request path.
func (t *RouteTable) Set(path string, flags RouteFlags) {
	t.routes[path] = flags
}

// Lookup returns the flags of the route, or zero flags when the route is not
// registered.
func (t *RouteTable) Lookup(path string) RouteFlags {
	if t == nil {
		return RouteFlags{}
	}
	return t.routes[path]
}
