package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/pkg/apperr"
)

type teamRepo struct{ db *DB }

func (r *teamRepo) Create(_ context.Context, t *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.meetings[t.MeetingID]; !ok {
		return apperr.Invalid("meeting_id", "unknown meeting")
	}
	for _, existing := range r.db.teams {
		if existing.team.MeetingID == t.MeetingID && existing.team.Name == t.Name {
			return fmt.Errorf("%w: team %s", apperr.ErrConflict, t.Name)
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = r.db.now()
	t.LeaderID = nil
	t.MemberIDs = nil
	r.db.teams[t.ID] = &teamRow{team: *t, members: make(map[uuid.UUID]struct{})}
	return nil
}

func (r *teamRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Team, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	row, ok := r.db.teams[id]
	if !ok {
		return nil, apperr.NotFound("team")
	}
	t := row.snapshot()
	return &t, nil
}

func (row *teamRow) snapshot() models.Team {
	t := row.team
	t.MemberIDs = make([]uuid.UUID, 0, len(row.members))
	for id := range row.members {
		t.MemberIDs = append(t.MemberIDs, id)
	}
	sort.Slice(t.MemberIDs, func(i, j int) bool { return t.MemberIDs[i].String() < t.MemberIDs[j].String() })
	return t
}

func (r *teamRepo) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]models.Team, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Team
	for _, row := range r.db.teams {
		if row.team.MeetingID == meetingID {
			out = append(out, row.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *teamRepo) SetMembers(_ context.Context, teamID uuid.UUID, memberIDs []uuid.UUID, leaderID *uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.teams[teamID]
	if !ok {
		return apperr.NotFound("team")
	}
	members := make(map[uuid.UUID]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := r.db.attendees[id]; !ok {
			return apperr.Invalid("member_ids", "unknown attendee")
		}
		members[id] = struct{}{}
	}
	row.members = members
	row.team.LeaderID = leaderID
	return nil
}

func (r *teamRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.teams[id]; !ok {
		return apperr.NotFound("team")
	}
	delete(r.db.teams, id)
	return nil
}

type purger struct{ db *DB }

func (p *purger) PurgeOperational(_ context.Context) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	keep := make(map[uuid.UUID]struct{})
	for id, adm := range p.db.admins {
		if adm.IsOriginal {
			keep[adm.AttendeeID] = struct{}{}
			continue
		}
		delete(p.db.admins, id)
	}
	p.db.attendances = make(map[uuid.UUID]models.Attendance)
	p.db.attSeq = make(map[uuid.UUID]int64)
	p.db.teams = make(map[uuid.UUID]*teamRow)
	p.db.tokens = make(map[uuid.UUID]models.Token)
	p.db.meetings = make(map[uuid.UUID]models.Meeting)
	p.db.events = make(map[uuid.UUID]models.Event)
	for id := range p.db.attendees {
		if _, ok := keep[id]; !ok {
			delete(p.db.attendees, id)
		}
	}
	return nil
}
