package model

import "time"

// Location is a user-specific storage place for items. Names are unique
// per user.
type Location struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
