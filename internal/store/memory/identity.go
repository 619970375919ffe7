package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/utils"
)

type regionRepo struct{ db *DB }

func (r *regionRepo) Create(_ context.Context, name string) (*models.Region, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.regions {
		if existing.Name == name {
			return nil, fmt.Errorf("%w: region %s", apperr.ErrConflict, name)
		}
	}
	reg := models.Region{ID: uuid.New(), Name: name, CreatedAt: r.db.now()}
	r.db.regions[reg.ID] = reg
	return &reg, nil
}

func (r *regionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Region, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	reg, ok := r.db.regions[id]
	if !ok {
		return nil, apperr.NotFound("region")
	}
	return &reg, nil
}

func (r *regionRepo) List(_ context.Context) ([]models.Region, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Region, 0, len(r.db.regions))
	for _, reg := range r.db.regions {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *regionRepo) Rename(_ context.Context, id uuid.UUID, name string) (*models.Region, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reg, ok := r.db.regions[id]
	if !ok {
		return nil, apperr.NotFound("region")
	}
	for _, existing := range r.db.regions {
		if existing.ID != id && existing.Name == name {
			return nil, fmt.Errorf("%w: region %s", apperr.ErrConflict, name)
		}
	}
	reg.Name = name
	r.db.regions[id] = reg
	return &reg, nil
}

func (r *regionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.regions[id]; !ok {
		return apperr.NotFound("region")
	}
	for aid, a := range r.db.attendees {
		if a.RegionID != nil && *a.RegionID == id {
			a.RegionID = nil
			r.db.attendees[aid] = a
		}
	}
	delete(r.db.regions, id)
	return nil
}

func (r *regionRepo) EnsureDefaults(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := r.Create(ctx, n); err != nil && !apperr.IsAny(err, apperr.ErrConflict, apperr.ErrValidation) {
			return err
		}
	}
	return nil
}

type attendeeRepo struct{ db *DB }

func (r *attendeeRepo) Create(_ context.Context, a *models.Attendee) error {
	if a.Phone == "" {
		return apperr.Invalid("phone", "required")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.attendees {
		if existing.Phone == a.Phone {
			return fmt.Errorf("%w: attendee phone", apperr.ErrConflict)
		}
	}
	if a.RegionID != nil {
		if _, ok := r.db.regions[*a.RegionID]; !ok {
			return apperr.Invalid("region_id", "unknown region")
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = r.db.now()
	r.db.attendees[a.ID] = *a
	*a = r.db.withRegion(*a)
	return nil
}

func (r *attendeeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Attendee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.attendees[id]
	if !ok {
		return nil, apperr.NotFound("attendee")
	}
	a = r.db.withRegion(a)
	return &a, nil
}

func (r *attendeeRepo) FindByPhone(_ context.Context, phone string) (*models.Attendee, error) {
	canonical := utils.CanonicalPhone(phone)
	if canonical == "" {
		return nil, nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var legacy *models.Attendee
	for _, a := range r.db.attendees {
		if a.Phone == canonical {
			a = r.db.withRegion(a)
			return &a, nil
		}
		if legacy == nil && utils.CanonicalPhone(a.Phone) == canonical {
			a := a
			legacy = &a
		}
	}
	if legacy == nil {
		return nil, nil
	}
	legacy.Phone = canonical
	r.db.attendees[legacy.ID] = *legacy
	found := r.db.withRegion(*legacy)
	return &found, nil
}

func (r *attendeeRepo) Update(_ context.Context, a *models.Attendee) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.attendees[a.ID]
	if !ok {
		return apperr.NotFound("attendee")
	}
	for _, other := range r.db.attendees {
		if other.ID != a.ID && other.Phone == a.Phone {
			return fmt.Errorf("%w: attendee phone", apperr.ErrConflict)
		}
	}
	if a.RegionID != nil {
		if _, ok := r.db.regions[*a.RegionID]; !ok {
			return apperr.Invalid("region_id", "unknown region")
		}
	}
	a.CreatedAt = existing.CreatedAt
	r.db.attendees[a.ID] = *a
	*a = r.db.withRegion(*a)
	return nil
}

func (r *attendeeRepo) List(_ context.Context, f store.AttendeeFilter) ([]models.Attendee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.backfillRegions()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	digits := utils.CanonicalPhone(q)
	var out []models.Attendee
	for _, a := range r.db.attendees {
		if f.RegionID != nil && (a.RegionID == nil || *a.RegionID != *f.RegionID) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Name), q) && (digits == "" || !strings.Contains(a.Phone, digits)) {
			continue
		}
		out = append(out, r.db.withRegion(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, f.Offset, f.Limit), nil
}

// backfillRegions links legacy labels to regions of the same name; mu must be held.
func (r *attendeeRepo) backfillRegions() {
	byName := make(map[string]uuid.UUID, len(r.db.regions))
	for _, reg := range r.db.regions {
		byName[reg.Name] = reg.ID
	}
	for id, a := range r.db.attendees {
		if a.RegionID != nil || a.RegionLabel == "" {
			continue
		}
		if rid, ok := byName[strings.ToUpper(strings.TrimSpace(a.RegionLabel))]; ok {
			a.RegionID = &rid
			r.db.attendees[id] = a
		}
	}
}

func (r *attendeeRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Attendee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Attendee, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.db.attendees[id]; ok {
			out = append(out, r.db.withRegion(a))
		}
	}
	return out, nil
}

func (r *attendeeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.attendees[id]; !ok {
		return apperr.NotFound("attendee")
	}
	for _, adm := range r.db.admins {
		if adm.AttendeeID == id && adm.IsOriginal {
			return apperr.Invalid("id", "the original administrator cannot be deleted")
		}
	}
	r.db.deleteAttendee(id)
	return nil
}

// deleteAttendee removes the attendee and rows referencing it; mu must be held.
func (db *DB) deleteAttendee(id uuid.UUID) {
	for aid, att := range db.attendances {
		if att.AttendeeID == id {
			delete(db.attendances, aid)
			delete(db.attSeq, aid)
		}
	}
	for _, t := range db.teams {
		delete(t.members, id)
		if t.team.LeaderID != nil && *t.team.LeaderID == id {
			t.team.LeaderID = nil
		}
	}
	for adminID, adm := range db.admins {
		if adm.AttendeeID == id {
			delete(db.admins, adminID)
		}
	}
	delete(db.attendees, id)
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type adminRepo struct{ db *DB }

func (r *adminRepo) Create(_ context.Context, a *models.Admin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.attendees[a.AttendeeID]; !ok {
		return apperr.Invalid("attendee_id", "unknown attendee")
	}
	for _, existing := range r.db.admins {
		if existing.AttendeeID == a.AttendeeID {
			return fmt.Errorf("%w: admin attendee", apperr.ErrConflict)
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = r.db.now()
	r.db.admins[a.ID] = *a
	return nil
}

func (r *adminRepo) FindByAttendee(_ context.Context, attendeeID uuid.UUID) (*models.Admin, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.admins {
		if a.AttendeeID == attendeeID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *adminRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.db.admins), nil
}
