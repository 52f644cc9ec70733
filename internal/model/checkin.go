package model

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CheckIn is a factual record that a user attended a church on a date.
// It carries no rating.  (UserID, ChurchID, VisitedOn) is unique.
type CheckIn struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	ChurchID  uint64    `json:"church_id"`
	VisitedOn time.Time `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitDate renders VisitedOn as YYYY-MM-DD.
func (c CheckIn) VisitDate() string { return c.VisitedOn.Format(DateLayout) }

// CheckInEntry is a check-in joined with the church name for listings.
type CheckInEntry struct {
	ID         uint64 `json:"id"`
	ChurchID   uint64 `json:"church_id"`
	ChurchName string `json:"church_name"`
	City       string `json:"city"`
	State      string `json:"state"`
	VisitedOn  string `json:"visited_on"`
}
