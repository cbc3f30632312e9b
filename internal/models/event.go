package models

import "time"

// Event represents a loggable action in the system's activity feed.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "post.create", "post.like"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	PostID    *int64    `json:"postId,omitempty"` // Nullable for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}
