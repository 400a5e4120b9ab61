package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// RateLimit limits each client to limit requests per window on each route.
// Routes are counted separately so a dashboard polling /api/status cannot
// starve /api/positions. Paths in exempt are never limited.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || slices.Contains(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := limiterKey(r)
			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				// fail open
				logger.Warn("api rate limiter unavailable", slog.String("key", key), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if !allowed {
				retry := max(1, int(window.Seconds()))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiterKey namespaces the limiter by route and client, e.g.
// "api:/api/status:10.0.0.7".
func limiterKey(r *http.Request) string {
	return "api:" + route(r) + ":" + clientIP(r)
}

// clientIP prefers the first well-formed X-Forwarded-For address and falls
// back to the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
