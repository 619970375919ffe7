package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a group formed inside a special meeting. LeaderID, when set, is one of MemberIDs.
type Team struct {
	ID        uuid.UUID   `json:"id"`
	MeetingID uuid.UUID   `json:"meeting_id"`
	Name      string      `json:"name"`
	LeaderID  *uuid.UUID  `json:"leader_id,omitempty"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasMember reports whether id is a member of the team.
func (t *Team) HasMember(id uuid.UUID) bool {
	for _, m := range t.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
