package models

import "time"

// Post is a short text post owned by a single user.
type Post struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"` // Owner's username, joined on read
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	// Usernames of users who liked the post. Membership is binary per
	// user; the JSON shape keeps an empty array rather than null.
	Likes     []string `json:"likes"`
	LikeCount int      `json:"likeCount"`
}
