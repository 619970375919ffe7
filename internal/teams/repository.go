package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/database"
)

// Repository handles teams and their members.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Teams = (*Repository)(nil)

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectTeam = `SELECT t.id, t.meeting_id, t.name, t.leader_id, t.created_at,
		COALESCE(ARRAY(SELECT tm.attendee_id FROM team_members tm WHERE tm.team_id = t.id ORDER BY tm.attendee_id), '{}')
	FROM teams t`

func scanTeam(row pgx.Row) (*models.Team, error) {
	var t models.Team
	if err := row.Scan(&t.ID, &t.MeetingID, &t.Name, &t.LeaderID, &t.CreatedAt, &t.MemberIDs); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a team. A name already used in the meeting yields apperr.ErrConflict.
func (r *Repository) Create(ctx context.Context, t *models.Team) error {
	const q = `INSERT INTO teams (id, meeting_id, name) VALUES (gen_random_uuid(), $1, $2) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, t.MeetingID, t.Name).Scan(&t.ID, &t.CreatedAt); err != nil {
		return database.Classify(err)
	}
	t.LeaderID = nil
	t.MemberIDs = []uuid.UUID{}
	return nil
}

// GetByID returns a team with its member ids.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	t, err := scanTeam(r.pool.QueryRow(ctx, selectTeam+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return t, nil
}

// ListByMeeting returns the teams of a meeting ordered by name.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, selectTeam+` WHERE t.meeting_id = $1 ORDER BY t.name`, meetingID)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, *t)
	}
	return list, database.Classify(rows.Err())
}

// SetMembers replaces the member set and leader of a team in one transaction.
func (r *Repository) SetMembers(ctx context.Context, teamID uuid.UUID, memberIDs []uuid.UUID, leaderID *uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE teams SET leader_id = $1 WHERE id = $2`, leaderID, teamID)
		if err != nil {
			return database.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("team")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, teamID); err != nil {
			return database.Classify(err)
		}
		if len(memberIDs) == 0 {
			return nil
		}
		const q = `INSERT INTO team_members (team_id, attendee_id) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, q, teamID, memberIDs); err != nil {
			return database.Classify(err)
		}
		return nil
	})
}

// Delete removes a team and its memberships.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, id); err != nil {
			return database.Classify(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
		if err != nil {
			return database.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("team")
		}
		return nil
	})
}
