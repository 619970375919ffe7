package regions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/database"
)

// Repository handles region persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Regions = (*Repository)(nil)

// NewRepository creates a regions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NormalizeName trims and upper-cases a region name.
func NormalizeName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", apperr.Invalid("name", "required")
	}
	return name, nil
}

// Create inserts a region. Duplicate names yield apperr.ErrConflict.
func (r *Repository) Create(ctx context.Context, name string) (*models.Region, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	reg := models.Region{Name: name}
	const q = `INSERT INTO regions (id, name) VALUES (gen_random_uuid(), $1) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, name).Scan(&reg.ID, &reg.CreatedAt); err != nil {
		return nil, database.Classify(err)
	}
	return &reg, nil
}

// GetByID returns a region by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Region, error) {
	var reg models.Region
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM regions WHERE id = $1`, id).Scan(&reg.ID, &reg.Name, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("region")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &reg, nil
}

// List returns every region ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Region, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM regions ORDER BY name`)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()
	var list []models.Region
	for rows.Next() {
		var reg models.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.CreatedAt); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, reg)
	}
	return list, database.Classify(rows.Err())
}

// Rename changes a region's name.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Region, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	reg := models.Region{ID: id, Name: name}
	err = r.pool.QueryRow(ctx, `UPDATE regions SET name = $1 WHERE id = $2 RETURNING created_at`, name, id).Scan(&reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("region")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &reg, nil
}

// Delete removes a region after unlinking its attendees. Attendees are never deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE attendees SET region_id = NULL WHERE region_id = $1`, id); err != nil {
			return database.Classify(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM regions WHERE id = $1`, id)
		if err != nil {
			return database.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("region")
		}
		return nil
	})
}

// EnsureDefaults inserts any of names that does not exist yet.
func (r *Repository) EnsureDefaults(ctx context.Context, names []string) error {
	const q = `INSERT INTO regions (id, name) VALUES (gen_random_uuid(), $1) ON CONFLICT (name) DO NOTHING`
	for _, n := range names {
		name, err := NormalizeName(n)
		if err != nil {
			continue
		}
		if _, err := r.pool.Exec(ctx, q, name); err != nil {
			return database.Classify(err)
		}
	}
	return nil
}
