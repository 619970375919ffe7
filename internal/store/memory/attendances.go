package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/pkg/apperr"
)

type attendanceRepo struct{ db *DB }

func (r *attendanceRepo) Record(_ context.Context, meetingID, attendeeID uuid.UUID, at time.Time) (*models.Attendance, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.meetings[meetingID]; !ok {
		return nil, false, apperr.Invalid("meeting_id", "unknown meeting")
	}
	if _, ok := r.db.attendees[attendeeID]; !ok {
		return nil, false, apperr.Invalid("attendee_id", "unknown attendee")
	}
	if existing := r.db.findAttendance(meetingID, attendeeID); existing != nil {
		return existing, false, nil
	}
	att := models.Attendance{ID: uuid.New(), MeetingID: meetingID, AttendeeID: attendeeID, ConfirmedAt: at}
	r.db.attendances[att.ID] = att
	r.db.attSeq[att.ID] = r.db.nextSeq()
	return &att, true, nil
}

// findAttendance must be called with mu held.
func (db *DB) findAttendance(meetingID, attendeeID uuid.UUID) *models.Attendance {
	for _, a := range db.attendances {
		if a.MeetingID == meetingID && a.AttendeeID == attendeeID {
			return &a
		}
	}
	return nil
}

func (r *attendanceRepo) Find(_ context.Context, meetingID, attendeeID uuid.UUID) (*models.Attendance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findAttendance(meetingID, attendeeID), nil
}

func (r *attendanceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Attendance, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.attendances[id]
	if !ok {
		return nil, apperr.NotFound("attendance")
	}
	return &a, nil
}

func (r *attendanceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.attendances[id]; !ok {
		return apperr.NotFound("attendance")
	}
	delete(r.db.attendances, id)
	delete(r.db.attSeq, id)
	return nil
}

func (r *attendanceRepo) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]models.AttendanceEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := r.db.entries(func(a models.Attendance) bool { return a.MeetingID == meetingID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attendee.Name < out[j].Attendee.Name })
	return out, nil
}

func (r *attendanceRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.AttendanceEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.entries(func(a models.Attendance) bool {
		m, ok := r.db.meetings[a.MeetingID]
		return ok && m.EventID == eventID
	}), nil
}

// entries returns matching attendances joined with attendees, in insertion order; mu must be held.
func (db *DB) entries(match func(models.Attendance) bool) []models.AttendanceEntry {
	var out []models.AttendanceEntry
	for _, a := range db.attendances {
		if !match(a) {
			continue
		}
		out = append(out, models.AttendanceEntry{Attendance: a, Attendee: db.withRegion(db.attendees[a.AttendeeID])})
	}
	sort.Slice(out, func(i, j int) bool {
		return db.attSeq[out[i].Attendance.ID] < db.attSeq[out[j].Attendance.ID]
	})
	return out
}

func (r *attendanceRepo) CountByAttendees(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	counts := make(map[uuid.UUID]int, len(ids))
	for _, a := range r.db.attendances {
		if _, ok := want[a.AttendeeID]; ok {
			counts[a.AttendeeID]++
		}
	}
	return counts, nil
}
