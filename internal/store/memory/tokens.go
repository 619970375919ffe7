package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/pkg/apperr"
)

type tokenRepo struct{ db *DB }

func (r *tokenRepo) Issue(_ context.Context, meetingID uuid.UUID, value string) (*models.Token, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.meetings[meetingID]; !ok {
		return nil, apperr.NotFound("meeting")
	}
	for _, t := range r.db.tokens {
		if t.Value == value {
			return nil, fmt.Errorf("%w: token value", apperr.ErrConflict)
		}
	}
	r.db.deactivate(meetingID, uuid.Nil)
	t := models.Token{ID: uuid.New(), MeetingID: meetingID, Value: value, Active: true, CreatedAt: r.db.now()}
	r.db.tokens[t.ID] = t
	return &t, nil
}

// deactivate clears the active flag on the meeting's tokens except keep; mu must be held.
func (db *DB) deactivate(meetingID, keep uuid.UUID) {
	for id, t := range db.tokens {
		if t.MeetingID == meetingID && t.Active && id != keep {
			t.Active = false
			db.tokens[id] = t
		}
	}
}

func (r *tokenRepo) Resolve(_ context.Context, value string) (*models.Token, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.tokens {
		if t.Value == value {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("token")
}

func (r *tokenRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Token, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.tokens[id]
	if !ok {
		return nil, apperr.NotFound("token")
	}
	return &t, nil
}

func (r *tokenRepo) ActiveForMeeting(_ context.Context, meetingID uuid.UUID) (*models.Token, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.tokens {
		if t.MeetingID == meetingID && t.Active {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *tokenRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (*models.Token, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[id]
	if !ok {
		return nil, apperr.NotFound("token")
	}
	if active {
		r.db.deactivate(t.MeetingID, id)
	}
	t.Active = active
	r.db.tokens[id] = t
	return &t, nil
}

func (r *tokenRepo) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]models.Token, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Token
	for _, t := range r.db.tokens {
		if t.MeetingID == meetingID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *tokenRepo) ListActive(_ context.Context) ([]models.Token, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Token
	for _, t := range r.db.tokens {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
