package tokens

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

// Repository handles token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Tokens = (*Repository)(nil)

// NewRepository creates a tokens repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectToken = `SELECT id, meeting_id, value, active, created_at FROM tokens`

func scanToken(row pgx.Row, t *models.Token) error {
	return row.Scan(&t.ID, &t.MeetingID, &t.Value, &t.Active, &t.CreatedAt)
}

// Issue locks the meeting row, deactivates its tokens and inserts value as the only active one.
// Concurrent issues for the same meeting serialise on the row lock.
func (r *Repository) Issue(ctx context.Context, meetingID uuid.UUID, value string) (*models.Token, error) {
	t := models.Token{MeetingID: meetingID, Value: value, Active: true}
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM meetings WHERE id = $1 FOR UPDATE`, meetingID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("meeting")
		}
		if err != nil {
			return database.Classify(err)
		}
		if _, err := tx.Exec(ctx, `UPDATE tokens SET active = FALSE WHERE meeting_id = $1 AND active`, meetingID); err != nil {
			return database.Classify(err)
		}
		const q = `INSERT INTO tokens (id, meeting_id, value, active) VALUES (gen_random_uuid(), $1, $2, TRUE) RETURNING id, created_at`
		return database.Classify(tx.QueryRow(ctx, q, meetingID, value).Scan(&t.ID, &t.CreatedAt))
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Resolve finds a token by value.
func (r *Repository) Resolve(ctx context.Context, value string) (*models.Token, error) {
	return r.one(ctx, selectToken+` WHERE value = $1`, value)
}

// GetByID returns a token by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	return r.one(ctx, selectToken+` WHERE id = $1`, id)
}

func (r *Repository) one(ctx context.Context, q string, arg any) (*models.Token, error) {
	var t models.Token
	if err := scanToken(r.pool.QueryRow(ctx, q, arg), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("token")
		}
		return nil, database.Classify(err)
	}
	return &t, nil
}

// ActiveForMeeting returns the meeting's active token, or nil when there is none.
func (r *Repository) ActiveForMeeting(ctx context.Context, meetingID uuid.UUID) (*models.Token, error) {
	var t models.Token
	err := scanToken(r.pool.QueryRow(ctx, selectToken+` WHERE meeting_id = $1 AND active LIMIT 1`, meetingID), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &t, nil
}

// SetActive flips a token's flag. Activating deactivates the meeting's other tokens in the same transaction.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Token, error) {
	var t models.Token
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := scanToken(tx.QueryRow(ctx, selectToken+` WHERE id = $1 FOR UPDATE`, id), &t)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("token")
		}
		if err != nil {
			return database.Classify(err)
		}
		if active {
			const q = `UPDATE tokens SET active = FALSE WHERE meeting_id = $1 AND id <> $2 AND active`
			if _, err := tx.Exec(ctx, q, t.MeetingID, id); err != nil {
				return database.Classify(err)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE tokens SET active = $1 WHERE id = $2`, active, id); err != nil {
			return database.Classify(err)
		}
		t.Active = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByMeeting returns the meeting's tokens, newest first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Token, error) {
	return r.list(ctx, selectToken+` WHERE meeting_id = $1 ORDER BY created_at DESC`, meetingID)
}

// ListActive returns every active token, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.Token, error) {
	return r.list(ctx, selectToken+` WHERE active ORDER BY created_at DESC`)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Token, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.Token
	for rows.Next() {
		var t models.Token
		if err := scanToken(rows, &t); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, t)
	}
	return list, database.Classify(rows.Err())
}
