package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance records one attendee at one meeting. ConfirmedAt is local civil time.
type Attendance struct {
	ID          uuid.UUID `json:"id"`
	MeetingID   uuid.UUID `json:"meeting_id"`
	AttendeeID  uuid.UUID `json:"attendee_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// AttendanceEntry is an attendance joined with its attendee.
type AttendanceEntry struct {
	Attendance Attendance `json:"attendance"`
	Attendee   Attendee   `json:"attendee"`
}
