package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin grants dashboard access to an attendee. The original admin cannot be removed.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	AttendeeID   uuid.UUID `json:"attendee_id"`
	PasswordHash string    `json:"-"`
	IsOriginal   bool      `json:"is_original"`
	CreatedAt    time.Time `json:"created_at"`
}
