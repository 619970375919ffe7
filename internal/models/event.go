package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Event is a time-bounded series of meetings. StartDate <= EndDate.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
}

// Ended reports whether the event's last day is before today.
func (e *Event) Ended(today civil.Date) bool {
	return e.EndDate.Before(today)
}

// Contains reports whether d falls within [StartDate, EndDate].
func (e *Event) Contains(d civil.Date) bool {
	return !d.Before(e.StartDate) && !d.After(e.EndDate)
}

// Meeting is one dated session of an event. Seq records insertion order for same-day ties.
type Meeting struct {
	ID        uuid.UUID  `json:"id"`
	EventID   uuid.UUID  `json:"event_id"`
	Title     string     `json:"title"`
	Date      civil.Date `json:"date"`
	IsSpecial bool       `json:"is_special"`
	Seq       int64      `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}

// Label is the display name used in charts and exports.
func (m *Meeting) Label() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Date.In(time.UTC).Format("02/01/2006")
}
