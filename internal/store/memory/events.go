package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/pkg/apperr"
)

type eventRepo struct{ db *DB }

func (r *eventRepo) Create(_ context.Context, e *models.Event) error {
	if e.EndDate.Before(e.StartDate) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = r.db.now()
	r.db.events[e.ID] = *e
	return nil
}

func (r *eventRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	return &e, nil
}

func (r *eventRepo) List(_ context.Context) ([]models.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Event, 0, len(r.db.events))
	for _, e := range r.db.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *eventRepo) Update(_ context.Context, e *models.Event) error {
	if e.EndDate.Before(e.StartDate) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.events[e.ID]
	if !ok {
		return apperr.NotFound("event")
	}
	e.CreatedAt = existing.CreatedAt
	r.db.events[e.ID] = *e
	return nil
}

func (r *eventRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[id]; !ok {
		return apperr.NotFound("event")
	}
	for mid, m := range r.db.meetings {
		if m.EventID == id {
			r.db.deleteMeeting(mid)
		}
	}
	delete(r.db.events, id)
	return nil
}

type meetingRepo struct{ db *DB }

func (r *meetingRepo) Create(_ context.Context, m *models.Meeting) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[m.EventID]; !ok {
		return apperr.Invalid("event_id", "unknown event")
	}
	m.ID = uuid.New()
	m.Seq = r.db.nextSeq()
	m.CreatedAt = r.db.now()
	r.db.meetings[m.ID] = *m
	return nil
}

func (r *meetingRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting")
	}
	return &m, nil
}

func (r *meetingRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Meeting, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Meeting
	for _, m := range r.db.meetings {
		if m.EventID == eventID {
			out = append(out, m)
		}
	}
	sortMeetings(out)
	return out, nil
}

func (r *meetingRepo) Update(_ context.Context, m *models.Meeting) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.meetings[m.ID]
	if !ok {
		return apperr.NotFound("meeting")
	}
	m.EventID = existing.EventID
	m.Seq = existing.Seq
	m.CreatedAt = existing.CreatedAt
	r.db.meetings[m.ID] = *m
	return nil
}

func (r *meetingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.meetings[id]; !ok {
		return apperr.NotFound("meeting")
	}
	r.db.deleteMeeting(id)
	return nil
}
