package services

import (
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"micropost-be/internal/models"
	ws "micropost-be/internal/websocket"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, postID *int64) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService provides business logic for the activity feed. Events
// are best-effort: a failed event write never fails the request that
// triggered it.
type EventService struct {
	db  *sql.DB
	hub *ws.Hub
}

// NewEventService creates a new EventService. The hub may be nil when
// no live feed is wanted (tests).
func NewEventService(db *sql.DB, hub *ws.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// CreateEvent logs a new event to the database and broadcasts it to
// connected feed clients.
func (s *EventService) CreateEvent(eventType, level, message string, postID *int64) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		PostID:  postID,
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, post_id) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.PostID); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to persist event")
		return err
	}

	if s.hub != nil {
		payload := ws.NewEventMessage(event)
		s.hub.Broadcast <- payload
		if event.PostID != nil {
			s.hub.BroadcastTo(strconv.FormatInt(*event.PostID, 10), payload)
		}
	}
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query(
		"SELECT id, type, level, message, post_id, created_at FROM events ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.PostID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
