package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt"`
}

// UserProfile holds the geolocation metadata attached to a user,
// separate from credentials. All fields are best-effort and may be
// blank when the lookup returned partial data.
type UserProfile struct {
	UserID    string    `json:"userId"`
	City      string    `json:"city"`
	Region    string    `json:"region"`
	Country   string    `json:"country"`
	LastIP    string    `json:"-"` // Signup address, for re-enrichment only
	CreatedAt time.Time `json:"createdAt"`
}
