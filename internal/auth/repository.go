package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/database"
)

// Repository handles administrator persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Admins = (*Repository)(nil)

// NewRepository creates an admins repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an admin. An attendee that is already an admin yields apperr.ErrConflict.
func (r *Repository) Create(ctx context.Context, a *models.Admin) error {
	const q = `INSERT INTO admins (id, attendee_id, password_hash, is_original)
		VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, a.AttendeeID, a.PasswordHash, a.IsOriginal).Scan(&a.ID, &a.CreatedAt); err != nil {
		return database.Classify(err)
	}
	return nil
}

// FindByAttendee returns the admin record of an attendee, or nil when the attendee is not an admin.
func (r *Repository) FindByAttendee(ctx context.Context, attendeeID uuid.UUID) (*models.Admin, error) {
	const q = `SELECT id, attendee_id, password_hash, is_original, created_at FROM admins WHERE attendee_id = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, attendeeID).Scan(&a.ID, &a.AttendeeID, &a.PasswordHash, &a.IsOriginal, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &a, nil
}

// Count returns the number of admins.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, database.Classify(err)
	}
	return n, nil
}
