package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/database"
)

// Repository handles the attendance log.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Attendances = (*Repository)(nil)

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectEntry = `SELECT att.id, att.meeting_id, att.attendee_id, att.confirmed_at,
		a.id, a.phone, a.name, a.region_id, COALESCE(r.name, ''), a.region_label, COALESCE(a.email, ''), a.created_at
	FROM attendances att
	JOIN attendees a ON a.id = att.attendee_id
	LEFT JOIN regions r ON r.id = a.region_id`

// Record inserts the attendance unless the (meeting, attendee) pair exists. The unique constraint
// makes the check and the insert one statement, so concurrent scans cannot both insert.
// confirmed_at is a TIMESTAMP column: at's wall clock is stored as is.
func (r *Repository) Record(ctx context.Context, meetingID, attendeeID uuid.UUID, at time.Time) (*models.Attendance, bool, error) {
	const q = `INSERT INTO attendances (id, meeting_id, attendee_id, confirmed_at)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT ON CONSTRAINT uq_attendances_meeting_attendee DO NOTHING
		RETURNING id, confirmed_at`
	att := models.Attendance{MeetingID: meetingID, AttendeeID: attendeeID}
	err := r.pool.QueryRow(ctx, q, meetingID, attendeeID, at).Scan(&att.ID, &att.ConfirmedAt)
	if err == nil {
		return &att, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, database.Classify(err)
	}
	existing, err := r.Find(ctx, meetingID, attendeeID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Deleted between the insert and the read.
		return nil, false, fmt.Errorf("%w: attendance changed concurrently", apperr.ErrConflict)
	}
	return existing, false, nil
}

// Find returns the attendance for the pair, or nil.
func (r *Repository) Find(ctx context.Context, meetingID, attendeeID uuid.UUID) (*models.Attendance, error) {
	const q = `SELECT id, meeting_id, attendee_id, confirmed_at FROM attendances WHERE meeting_id = $1 AND attendee_id = $2`
	var att models.Attendance
	err := r.pool.QueryRow(ctx, q, meetingID, attendeeID).Scan(&att.ID, &att.MeetingID, &att.AttendeeID, &att.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &att, nil
}

// GetByID returns an attendance by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attendance, error) {
	const q = `SELECT id, meeting_id, attendee_id, confirmed_at FROM attendances WHERE id = $1`
	var att models.Attendance
	err := r.pool.QueryRow(ctx, q, id).Scan(&att.ID, &att.MeetingID, &att.AttendeeID, &att.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attendance")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &att, nil
}

// Delete removes one attendance.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("attendance")
	}
	return nil
}

// ListByMeeting returns the meeting's attendances ordered by attendee name.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.AttendanceEntry, error) {
	return r.entries(ctx, selectEntry+` WHERE att.meeting_id = $1 ORDER BY a.name, att.seq`, meetingID)
}

// ListByEvent returns every attendance of the event's meetings in insertion order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceEntry, error) {
	return r.entries(ctx, selectEntry+` JOIN meetings m ON m.id = att.meeting_id WHERE m.event_id = $1 ORDER BY att.seq`, eventID)
}

func (r *Repository) entries(ctx context.Context, q string, arg any) ([]models.AttendanceEntry, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.AttendanceEntry
	for rows.Next() {
		var e models.AttendanceEntry
		a := &e.Attendee
		if err := rows.Scan(&e.Attendance.ID, &e.Attendance.MeetingID, &e.Attendance.AttendeeID, &e.Attendance.ConfirmedAt,
			&a.ID, &a.Phone, &a.Name, &a.RegionID, &a.RegionName, &a.RegionLabel, &a.Email, &a.CreatedAt); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, e)
	}
	return list, database.Classify(rows.Err())
}

// CountByAttendees returns each attendee's attendance count across all meetings.
func (r *Repository) CountByAttendees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT attendee_id, COUNT(*) FROM attendances WHERE attendee_id = ANY($1) GROUP BY attendee_id`, ids)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, database.Classify(err)
		}
		counts[id] = n
	}
	return counts, database.Classify(rows.Err())
}
