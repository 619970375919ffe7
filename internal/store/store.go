// Package store declares the persistence contracts the check-in and analytics code depends on.
//
// Two implementations exist: the pgx repositories living next to each feature
// (attendees.Repository, tokens.Repository, ...) and the lock-guarded maps in store/memory.
// Both give the same guarantees:
//   - Attendances.Record is an atomic conditional insert on (meeting, attendee);
//   - Tokens.Issue and Tokens.SetActive(true) deactivate the meeting's other tokens atomically.
//
// Lookups whose absence is a normal branch (Find*, ActiveForMeeting) return (nil, nil).
// Lookups by id return apperr.ErrNotFound.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
)

// Regions persists regions.
type Regions interface {
	Create(ctx context.Context, name string) (*models.Region, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Region, error)
	List(ctx context.Context) ([]models.Region, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*models.Region, error)
	// Delete removes the region and nulls the reference on its attendees.
	Delete(ctx context.Context, id uuid.UUID) error
	EnsureDefaults(ctx context.Context, names []string) error
}

// AttendeeFilter narrows attendee listings.
type AttendeeFilter struct {
	Query    string // case-insensitive name substring or phone digits
	RegionID *uuid.UUID
	Limit    int
	Offset   int
}

// Attendees persists attendees keyed by canonical phone.
type Attendees interface {
	// Create fails with apperr.ErrConflict when the phone is taken.
	Create(ctx context.Context, a *models.Attendee) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error)
	// FindByPhone canonicalises legacy stored values it matches.
	FindByPhone(ctx context.Context, phone string) (*models.Attendee, error)
	Update(ctx context.Context, a *models.Attendee) error
	List(ctx context.Context, f AttendeeFilter) ([]models.Attendee, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attendee, error)
	// Delete removes the attendee with its attendances, team memberships and admin record.
	// The original administrator's attendee is refused with apperr.ErrValidation.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Events persists events.
type Events interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	// List returns events ordered by start date.
	List(ctx context.Context) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	// Delete cascades to meetings and everything they own.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Meetings persists meetings.
type Meetings interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	// ListByEvent returns meetings ordered by date, then insertion order.
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Meeting, error)
	Update(ctx context.Context, m *models.Meeting) error
	// Delete removes the meeting with its attendances, tokens and teams.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Tokens persists check-in tokens.
type Tokens interface {
	// Issue deactivates the meeting's active tokens and inserts value as the active one, atomically.
	Issue(ctx context.Context, meetingID uuid.UUID, value string) (*models.Token, error)
	// Resolve finds a token by its opaque value; apperr.ErrNotFound when unknown.
	Resolve(ctx context.Context, value string) (*models.Token, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error)
	ActiveForMeeting(ctx context.Context, meetingID uuid.UUID) (*models.Token, error)
	// SetActive(true) deactivates the meeting's other tokens in the same unit.
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Token, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Token, error)
	ListActive(ctx context.Context) ([]models.Token, error)
}

// Attendances persists the attendance log.
type Attendances interface {
	// Record inserts unless (meeting, attendee) already exists. created reports which happened;
	// the returned attendance is the stored one either way.
	Record(ctx context.Context, meetingID, attendeeID uuid.UUID, at time.Time) (att *models.Attendance, created bool, err error)
	Find(ctx context.Context, meetingID, attendeeID uuid.UUID) (*models.Attendance, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attendance, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByMeeting returns entries ordered by attendee name.
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.AttendanceEntry, error)
	// ListByEvent returns every entry of the event's meetings in insertion order.
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceEntry, error)
	// CountByAttendees returns the total attendance count per attendee across all meetings.
	CountByAttendees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
}

// Teams persists teams of special meetings.
type Teams interface {
	// Create fails with apperr.ErrConflict when the name is taken within the meeting.
	Create(ctx context.Context, t *models.Team) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Team, error)
	SetMembers(ctx context.Context, teamID uuid.UUID, memberIDs []uuid.UUID, leaderID *uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Admins persists dashboard administrators.
type Admins interface {
	Create(ctx context.Context, a *models.Admin) error
	FindByAttendee(ctx context.Context, attendeeID uuid.UUID) (*models.Admin, error)
	Count(ctx context.Context) (int, error)
}

// Purger wipes operational data, keeping only the original administrator.
type Purger interface {
	PurgeOperational(ctx context.Context) error
}

// Store bundles every contract; built once at startup.
type Store struct {
	Regions     Regions
	Attendees   Attendees
	Events      Events
	Meetings    Meetings
	Tokens      Tokens
	Attendances Attendances
	Teams       Teams
	Admins      Admins
	Purger      Purger
}
