// Package teams groups the attendees of special meetings into named teams with an optional
// leader.
package teams

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
)

// Candidate is a meeting attendee eligible for a team, with their attendance count across
// all meetings.
type Candidate struct {
	Attendee models.Attendee `json:"attendee"`
	Total    int             `json:"total"`
}

// Service manages teams.
type Service struct {
	teams       store.Teams
	meetings    store.Meetings
	attendances store.Attendances
	logger      *zap.Logger
}

// NewService creates a teams service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{teams: st.Teams, meetings: st.Meetings, attendances: st.Attendances, logger: logger}
}

func (s *Service) specialMeeting(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	m, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsSpecial {
		return nil, apperr.Invalid("meeting_id", "only special meetings accept teams")
	}
	return m, nil
}

// Create adds a team to a special meeting. Names are trimmed and upper-cased.
func (s *Service) Create(ctx context.Context, meetingID uuid.UUID, name string) (*models.Team, error) {
	if _, err := s.specialMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	t := &models.Team{MeetingID: meetingID, Name: name}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("team created", zap.String("team_id", t.ID.String()), zap.String("meeting_id", meetingID.String()))
	return t, nil
}

// List returns the teams of a special meeting.
func (s *Service) List(ctx context.Context, meetingID uuid.UUID) ([]models.Team, error) {
	if _, err := s.specialMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.teams.ListByMeeting(ctx, meetingID)
}

// Delete removes a team. The team must belong to meetingID.
func (s *Service) Delete(ctx context.Context, meetingID, teamID uuid.UUID) error {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.MeetingID != meetingID {
		return apperr.NotFound("team")
	}
	return s.teams.Delete(ctx, teamID)
}

// SetMembers replaces a team's members. Every member must have attended the team's meeting.
// A leader outside the member set is cleared rather than rejected.
func (s *Service) SetMembers(ctx context.Context, teamID uuid.UUID, memberIDs []uuid.UUID, leaderID *uuid.UUID) (*models.Team, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	entries, err := s.attendances.ListByMeeting(ctx, t.MeetingID)
	if err != nil {
		return nil, err
	}
	present := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		present[e.Attendee.ID] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{}, len(memberIDs))
	members := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := present[id]; !ok {
			return nil, apperr.Invalid("member_ids", "member did not attend the meeting: "+id.String())
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if leaderID != nil {
		if _, ok := seen[*leaderID]; !ok {
			leaderID = nil
		}
	}

	if err := s.teams.SetMembers(ctx, teamID, members, leaderID); err != nil {
		return nil, err
	}
	return s.teams.GetByID(ctx, teamID)
}

// Candidates lists the attendees of the team's meeting, most frequent attendees first, then by name.
func (s *Service) Candidates(ctx context.Context, teamID uuid.UUID) ([]Candidate, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	entries, err := s.attendances.ListByMeeting(ctx, t.MeetingID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Attendee.ID)
	}
	counts, err := s.attendances.CountByAttendees(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, Candidate{Attendee: e.Attendee, Total: counts[e.Attendee.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Attendee.Name < out[j].Attendee.Name
	})
	return out, nil
}
