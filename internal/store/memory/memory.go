// Package memory is a map-backed implementation of the store contracts, guarded by a single
// RWMutex. Used for local runs (STORAGE_DRIVER=memory) and by unit tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
)

type teamRow struct {
	team    models.Team
	members map[uuid.UUID]struct{}
}

// DB holds every table. All repositories returned by Store share its lock, so multi-table
// operations (issue, record, purge) are atomic.
type DB struct {
	mu sync.RWMutex

	regions     map[uuid.UUID]models.Region
	attendees   map[uuid.UUID]models.Attendee
	admins      map[uuid.UUID]models.Admin
	events      map[uuid.UUID]models.Event
	meetings    map[uuid.UUID]models.Meeting
	tokens      map[uuid.UUID]models.Token
	attendances map[uuid.UUID]models.Attendance
	attSeq      map[uuid.UUID]int64
	teams       map[uuid.UUID]*teamRow

	seq int64
	now func() time.Time
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		regions:     make(map[uuid.UUID]models.Region),
		attendees:   make(map[uuid.UUID]models.Attendee),
		admins:      make(map[uuid.UUID]models.Admin),
		events:      make(map[uuid.UUID]models.Event),
		meetings:    make(map[uuid.UUID]models.Meeting),
		tokens:      make(map[uuid.UUID]models.Token),
		attendances: make(map[uuid.UUID]models.Attendance),
		attSeq:      make(map[uuid.UUID]int64),
		teams:       make(map[uuid.UUID]*teamRow),
		now:         time.Now,
	}
}

// Store exposes the DB through the store contracts.
func (db *DB) Store() store.Store {
	return store.Store{
		Regions:     &regionRepo{db},
		Attendees:   &attendeeRepo{db},
		Events:      &eventRepo{db},
		Meetings:    &meetingRepo{db},
		Tokens:      &tokenRepo{db},
		Attendances: &attendanceRepo{db},
		Teams:       &teamRepo{db},
		Admins:      &adminRepo{db},
		Purger:      &purger{db},
	}
}

// nextSeq must be called with mu held.
func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

// withRegion fills RegionName from the regions table; mu must be held.
func (db *DB) withRegion(a models.Attendee) models.Attendee {
	a.RegionName = ""
	if a.RegionID != nil {
		if r, ok := db.regions[*a.RegionID]; ok {
			a.RegionName = r.Name
		}
	}
	return a
}

// deleteMeeting removes a meeting and everything it owns; mu must be held.
func (db *DB) deleteMeeting(id uuid.UUID) {
	for aid, a := range db.attendances {
		if a.MeetingID == id {
			delete(db.attendances, aid)
			delete(db.attSeq, aid)
		}
	}
	for tid, t := range db.tokens {
		if t.MeetingID == id {
			delete(db.tokens, tid)
		}
	}
	for tid, t := range db.teams {
		if t.team.MeetingID == id {
			delete(db.teams, tid)
		}
	}
	delete(db.meetings, id)
}

func sortMeetings(ms []models.Meeting) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Date != ms[j].Date {
			return ms[i].Date.Before(ms[j].Date)
		}
		return ms[i].Seq < ms[j].Seq
	})
}
