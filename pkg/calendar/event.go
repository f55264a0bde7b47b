// Package calendar implements the event store, status state machine,
// conflict detection and availability search that both the inbound tool
// surface and the outbound negotiation flow mutate.
package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle stage of an event.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusConfirmed Status = "confirmed"
	StatusBooked    Status = "booked"
	StatusFailed    Status = "failed"
	StatusNoShow    Status = "no_show"
)

// AllStatuses lists every defined status value.
var AllStatuses = []Status{
	StatusProposed, StatusAccepted, StatusRejected,
	StatusConfirmed, StatusBooked, StatusFailed, StatusNoShow,
}

// Valid reports whether s is a defined status value.
func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusAccepted, StatusRejected,
		StatusConfirmed, StatusBooked, StatusFailed, StatusNoShow:
		return true
	}
	return false
}

// Blocking reports whether events in this status block the calendar for
// conflict purposes. Proposed and terminal events never block.
func (s Status) Blocking() bool {
	switch s {
	case StatusAccepted, StatusConfirmed, StatusBooked:
		return true
	}
	return false
}

// Terminal reports whether no further transition (other than removal) is
// legal from this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusFailed, StatusNoShow:
		return true
	}
	return false
}

// Event is the unit of scheduling.
type Event struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Start        time.Time `json:"start"`
	Duration     string    `json:"duration"`
	PartnerAgent string    `json:"partner_agent"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewEvent constructs a proposed event with a fresh short id.
func NewEvent(start time.Time, duration, partner, title string) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:           uuid.NewString()[:8],
		Title:        title,
		Start:        start,
		Duration:     duration,
		PartnerAgent: partner,
		Status:       StatusProposed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DurationMinutes returns the parsed duration. Zero if unparseable.
func (e *Event) DurationMinutes() int {
	n, err := ParseDuration(e.Duration)
	if err != nil {
		return 0
	}
	return n
}

// End returns start + duration.
func (e *Event) End() time.Time {
	return e.Start.Add(time.Duration(e.DurationMinutes()) * time.Minute)
}

// Overlaps reports whether the two events share any instant. Back-to-back
// events (A.End == B.Start) do not overlap, nor do zero-length events.
func (e *Event) Overlaps(other *Event) bool {
	return e.Start.Before(other.End()) && other.Start.Before(e.End())
}

// transition applies a status change if legal, refreshing UpdatedAt.
// Illegal transitions are silent no-ops returning false.
func (e *Event) transition(to Status) bool {
	if !legalTransition(e.Status, to) {
		return false
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	return true
}

func legalTransition(from, to Status) bool {
	switch to {
	case StatusAccepted, StatusRejected:
		return from == StatusProposed
	case StatusConfirmed:
		return from == StatusProposed || from == StatusAccepted
	case StatusBooked:
		return !from.Terminal() && from != StatusBooked
	case StatusFailed:
		return from != StatusFailed
	case StatusNoShow:
		return from != StatusNoShow
	}
	return false
}

// Clone returns a copy of the event. Callers receive clones so snapshots
// cannot race with engine mutations.
func (e *Event) Clone() *Event {
	c := *e
	return &c
}
