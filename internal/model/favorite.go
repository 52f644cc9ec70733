package model

import "time"

// Favorite records that a user saved a church.  (UserID, ChurchID) is
// unique.
type Favorite struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	ChurchID  uint64    `json:"church_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteChurch is a favorite joined with the church it points to.
type FavoriteChurch struct {
	Church  ChurchSummary `json:"church"`
	SavedAt time.Time     `json:"saved_at"`
}
