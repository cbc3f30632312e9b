package handlers

import (
	"net/http"
	"time"

	"micropost-be/internal/monitoring"
)

// HealthHandler serves the service status and stats snapshot.
type HealthHandler struct {
	stats *monitoring.StatUpdater
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(stats *monitoring.StatUpdater) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// Check handles the health check request.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"stats":     h.stats.Snapshot(),
	})
}
