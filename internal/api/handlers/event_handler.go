package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"micropost-be/internal/services"
)

// EventHandler handles HTTP requests for the activity feed.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// parseEventLimit reads a limit query value, falling back to the default
// and capping oversized requests.
func parseEventLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultEventLimit
	}
	if limit > maxEventLimit {
		return maxEventLimit
	}
	return limit
}

// GetRecent handles the request to get recent activity.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseEventLimit(r.URL.Query().Get("limit"))

	events, err := h.service.GetRecentEvents(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
