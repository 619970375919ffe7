package models

import (
	"time"

	"github.com/google/uuid"
)

// Region groups attendees. Names are unique and stored upper-case.
type Region struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
