package middleware

import "net/http"

// routes are the paths the status API serves. Anything else is reported as
// "other" so metric labels and limiter keys stay bounded.
var routes = map[string]bool{
	"/api/health":    true,
	"/api/status":    true,
	"/api/positions": true,
	"/api/audit":     true,
	"/metrics":       true,
}

func route(r *http.Request) string {
	if routes[r.URL.Path] {
		return r.URL.Path
	}
	return "other"
}
