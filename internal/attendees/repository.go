package attendees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/database"
	"github.com/presenca/backend/pkg/utils"
)

const selectAttendee = `SELECT a.id, a.phone, a.name, a.region_id, COALESCE(r.name, ''), a.region_label, COALESCE(a.email, ''), a.created_at
	FROM attendees a LEFT JOIN regions r ON r.id = a.region_id`

// Repository handles attendee persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Attendees = (*Repository)(nil)

// NewRepository creates an attendees repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAttendee(row pgx.Row, a *models.Attendee) error {
	return row.Scan(&a.ID, &a.Phone, &a.Name, &a.RegionID, &a.RegionName, &a.RegionLabel, &a.Email, &a.CreatedAt)
}

// Create inserts an attendee. A taken phone yields apperr.ErrConflict.
func (r *Repository) Create(ctx context.Context, a *models.Attendee) error {
	const q = `INSERT INTO attendees (id, phone, name, region_id, region_label, email)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, a.Phone, a.Name, a.RegionID, a.RegionLabel, a.Email).Scan(&a.ID, &a.CreatedAt); err != nil {
		return database.Classify(err)
	}
	return r.fillRegion(ctx, a)
}

func (r *Repository) fillRegion(ctx context.Context, a *models.Attendee) error {
	a.RegionName = ""
	if a.RegionID == nil {
		return nil
	}
	err := r.pool.QueryRow(ctx, `SELECT name FROM regions WHERE id = $1`, *a.RegionID).Scan(&a.RegionName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return database.Classify(err)
}

// GetByID returns an attendee by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error) {
	var a models.Attendee
	if err := scanAttendee(r.pool.QueryRow(ctx, selectAttendee+` WHERE a.id = $1`, id), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("attendee")
		}
		return nil, database.Classify(err)
	}
	return &a, nil
}

// FindByPhone returns the attendee owning phone, or nil when there is none.
// Rows stored before canonicalisation are matched on their digits and rewritten.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.Attendee, error) {
	canonical := utils.CanonicalPhone(phone)
	if canonical == "" {
		return nil, nil
	}
	var a models.Attendee
	err := scanAttendee(r.pool.QueryRow(ctx, selectAttendee+` WHERE a.phone = $1`, canonical), &a)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, database.Classify(err)
	}

	err = scanAttendee(r.pool.QueryRow(ctx, selectAttendee+` WHERE regexp_replace(a.phone, '\D', '', 'g') = $1 ORDER BY a.created_at LIMIT 1`, canonical), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	if _, err := r.pool.Exec(ctx, `UPDATE attendees SET phone = $1 WHERE id = $2`, canonical, a.ID); err != nil {
		return nil, fmt.Errorf("canonicalise phone: %w", database.Classify(err))
	}
	a.Phone = canonical
	return &a, nil
}

// Update saves name, phone, region and email.
func (r *Repository) Update(ctx context.Context, a *models.Attendee) error {
	const q = `UPDATE attendees SET phone = $1, name = $2, region_id = $3, region_label = $4, email = NULLIF($5, '')
		WHERE id = $6 RETURNING created_at`
	if err := r.pool.QueryRow(ctx, q, a.Phone, a.Name, a.RegionID, a.RegionLabel, a.Email, a.ID).Scan(&a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("attendee")
		}
		return database.Classify(err)
	}
	return r.fillRegion(ctx, a)
}

// List returns attendees ordered by name. Legacy region labels matching a region are linked first.
func (r *Repository) List(ctx context.Context, f store.AttendeeFilter) ([]models.Attendee, error) {
	const backfill = `UPDATE attendees a SET region_id = r.id FROM regions r
		WHERE a.region_id IS NULL AND a.region_label <> '' AND UPPER(TRIM(a.region_label)) = r.name`
	if _, err := r.pool.Exec(ctx, backfill); err != nil {
		return nil, database.Classify(err)
	}

	q := selectAttendee + ` WHERE ($1 = '' OR a.name ILIKE '%' || $1 || '%' OR ($2 <> '' AND a.phone LIKE '%' || $2 || '%'))
		AND ($3::uuid IS NULL OR a.region_id = $3)
		ORDER BY a.name LIMIT NULLIF($4, 0) OFFSET $5`
	rows, err := r.pool.Query(ctx, q, f.Query, utils.CanonicalPhone(f.Query), f.RegionID, f.Limit, f.Offset)
	if err != nil {
		return nil, database.Classify(err)
	}
	return collect(rows)
}

// ListByIDs returns the attendees with the given ids, in no particular order.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attendee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, selectAttendee+` WHERE a.id = ANY($1)`, ids)
	if err != nil {
		return nil, database.Classify(err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]models.Attendee, error) {
	defer rows.Close()
	var list []models.Attendee
	for rows.Next() {
		var a models.Attendee
		if err := scanAttendee(rows, &a); err != nil {
			return nil, database.Classify(err)
		}
		list = append(list, a)
	}
	return list, database.Classify(rows.Err())
}

// Delete removes the attendee and the rows referencing it, children first.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var original bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE attendee_id = $1 AND is_original)`, id).Scan(&original)
		if err != nil {
			return database.Classify(err)
		}
		if original {
			return apperr.Invalid("id", "the original administrator cannot be deleted")
		}
		for _, q := range []string{
			`DELETE FROM attendances WHERE attendee_id = $1`,
			`DELETE FROM team_members WHERE attendee_id = $1`,
			`UPDATE teams SET leader_id = NULL WHERE leader_id = $1`,
			`DELETE FROM admins WHERE attendee_id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return database.Classify(err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, id)
		if err != nil {
			return database.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("attendee")
		}
		return nil
	})
}
