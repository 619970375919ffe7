package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/database"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Events = (*Repository)(nil)

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectEvent = `SELECT id, name, start_date, end_date, created_at FROM events`

func scanEvent(row pgx.Row, e *models.Event) error {
	var start, end time.Time
	if err := row.Scan(&e.ID, &e.Name, &start, &end, &e.CreatedAt); err != nil {
		return err
	}
	e.StartDate, e.EndDate = database.DateOf(start), database.DateOf(end)
	return nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, name, start_date, end_date) VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, e.Name, database.DateArg(e.StartDate), database.DateArg(e.EndDate)).Scan(&e.ID, &e.CreatedAt)
	return database.Classify(err)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	if err := scanEvent(r.pool.QueryRow(ctx, selectEvent+` WHERE id = $1`, id), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("event")
		}
		return nil, database.Classify(err)
	}
	return &e, nil
}

// List returns all events ordered by start date.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, selectEvent+` ORDER BY start_date, created_at`)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, e)
	}
	return list, database.Classify(rows.Err())
}

// Update saves name and date range.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, start_date = $2, end_date = $3 WHERE id = $4 RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, e.Name, database.DateArg(e.StartDate), database.DateArg(e.EndDate), e.ID).Scan(&e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("event")
	}
	return database.Classify(err)
}

// Delete removes an event; meetings and their children go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM meetings WHERE event_id = $1`, id)
		if err != nil {
			return database.Classify(err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return database.Classify(err)
		}
		for _, mid := range ids {
			if err := deleteMeeting(ctx, tx, mid); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return database.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("event")
		}
		return nil
	})
}

// meetingChildren lists the tables owned by a meeting, children before parents.
var meetingChildren = []string{
	`DELETE FROM attendances WHERE meeting_id = $1`,
	`DELETE FROM tokens WHERE meeting_id = $1`,
	`DELETE FROM team_members WHERE team_id IN (SELECT id FROM teams WHERE meeting_id = $1)`,
	`DELETE FROM teams WHERE meeting_id = $1`,
}

func deleteMeeting(ctx context.Context, q database.Querier, id uuid.UUID) error {
	for _, stmt := range meetingChildren {
		if _, err := q.Exec(ctx, stmt, id); err != nil {
			return database.Classify(err)
		}
	}
	tag, err := q.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return database.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting")
	}
	return nil
}

// MeetingRepository handles meeting persistence.
type MeetingRepository struct {
	pool *pgxpool.Pool
}

var _ store.Meetings = (*MeetingRepository)(nil)

// NewMeetingRepository creates a meetings repository.
func NewMeetingRepository(pool *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

const selectMeeting = `SELECT id, event_id, title, date, is_special, seq, created_at FROM meetings`

// ScanMeeting scans a row selected with the meeting column list.
func ScanMeeting(row pgx.Row, m *models.Meeting) error {
	var date time.Time
	if err := row.Scan(&m.ID, &m.EventID, &m.Title, &date, &m.IsSpecial, &m.Seq, &m.CreatedAt); err != nil {
		return err
	}
	m.Date = database.DateOf(date)
	return nil
}

// Create inserts a meeting.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, event_id, title, date, is_special) VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, seq, created_at`
	err := r.pool.QueryRow(ctx, q, m.EventID, m.Title, database.DateArg(m.Date), m.IsSpecial).Scan(&m.ID, &m.Seq, &m.CreatedAt)
	return database.Classify(err)
}

// GetByID returns a meeting by ID.
func (r *MeetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	var m models.Meeting
	if err := ScanMeeting(r.pool.QueryRow(ctx, selectMeeting+` WHERE id = $1`, id), &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("meeting")
		}
		return nil, database.Classify(err)
	}
	return &m, nil
}

// ListByEvent returns an event's meetings by date, same-day meetings in creation order.
func (r *MeetingRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Meeting, error) {
	rows, err := r.pool.Query(ctx, selectMeeting+` WHERE event_id = $1 ORDER BY date, seq`, eventID)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := ScanMeeting(rows, &m); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, m)
	}
	return list, database.Classify(rows.Err())
}

// Update saves title, date and the special flag. The owning event never changes.
func (r *MeetingRepository) Update(ctx context.Context, m *models.Meeting) error {
	const q = `UPDATE meetings SET title = $1, date = $2, is_special = $3 WHERE id = $4 RETURNING event_id, seq, created_at`
	err := r.pool.QueryRow(ctx, q, m.Title, database.DateArg(m.Date), m.IsSpecial, m.ID).Scan(&m.EventID, &m.Seq, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("meeting")
	}
	return database.Classify(err)
}

// Delete removes a meeting with its attendances, tokens and teams.
func (r *MeetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return deleteMeeting(ctx, tx, id)
	})
}
