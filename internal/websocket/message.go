package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage wraps an activity event for the feed.
func NewEventMessage(event interface{}) []byte {
	data, _ := json.Marshal(Message{Action: "event", Payload: event})
	return data
}

// NewStatsMessage wraps a system stats snapshot.
func NewStatsMessage(stats interface{}) []byte {
	data, _ := json.Marshal(Message{Action: "system.stats", Payload: stats})
	return data
}

// NewErrorMessage wraps an error string for a single client.
func NewErrorMessage(msg string) []byte {
	data, _ := json.Marshal(Message{Action: "error", Payload: msg})
	return data
}
