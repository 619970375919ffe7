package models

import (
	"time"

	"github.com/google/uuid"
)

// Token is the opaque check-in code printed in a meeting's QR code.
type Token struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	Value     string    `json:"value"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenToken is an active token together with its meeting and event, for the admin overview.
type OpenToken struct {
	Token   Token   `json:"token"`
	Meeting Meeting `json:"meeting"`
	Event   Event   `json:"event"`
}
