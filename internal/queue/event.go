// Package queue defines the domain events exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/churchfinder/internal/model"
)

// Exchange is the durable topic exchange domain events are published to.
// The event type is the routing key.
const Exchange = "churchfinder.events"

// Event types.
const (
	ChurchCreated   = "church.created"
	ChurchUpdated   = "church.updated"
	ChurchVerified  = "church.verified"
	ChurchClaimed   = "church.claimed"
	CheckInRecorded = "checkin.recorded"
)

// Event is published after a successful write.  It carries enough for
// consumers to log, notify or reindex without querying the primary
// database.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ChurchID   uint64    `json:"church_id"`
	ChurchName string    `json:"church_name,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	UserID     uint64    `json:"user_id,omitempty"`
	ClaimID    uint64    `json:"claim_id,omitempty"`
	Verified   *bool     `json:"verified,omitempty"`
	VisitedOn  string    `json:"visited_on,omitempty"`
}

// ChurchEvent builds a church.* event for c.
func ChurchEvent(typ string, c *model.Church, actor uint64) Event {
	return Event{
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		ChurchID:   c.ID,
		ChurchName: c.Name,
		City:       c.City,
		State:      c.State,
		UserID:     actor,
	}
}
