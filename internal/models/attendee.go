package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee is a person identified by canonical (digits-only) phone number.
type Attendee struct {
	ID          uuid.UUID  `json:"id"`
	Phone       string     `json:"phone"`
	Name        string     `json:"name"`
	RegionID    *uuid.UUID `json:"region_id,omitempty"`
	RegionName  string     `json:"region_name,omitempty"`  // joined from regions; empty when RegionID is nil
	RegionLabel string     `json:"region_label,omitempty"` // legacy free-text label
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Label returns the region label used for breakdowns: the structured region name when set,
// the legacy label otherwise.
func (a *Attendee) Label() string {
	if a.RegionID != nil && a.RegionName != "" {
		return a.RegionName
	}
	return a.RegionLabel
}
