package model

import "time"

// ClaimPending is the only status the API writes; review happens out of band.
const ClaimPending = "PENDING"

// ChurchClaim is a request by a user to manage an existing listing.
type ChurchClaim struct {
	ID          uint64    `json:"id"`
	ChurchID    uint64    `json:"church_id"`
	UserID      uint64    `json:"user_id"`
	ContactName string    `json:"contact_name"`
	ContactRole string    `json:"contact_role"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
