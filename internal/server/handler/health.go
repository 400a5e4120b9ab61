package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler reporting uptime since started.
func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started, now: time.Now}
}

// HealthCheck responds with a simple JSON status indicating the process is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      now.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(now.Sub(h.started) / time.Second),
	})
}
