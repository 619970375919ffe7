package events

import (
	"context"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
)

// Service validates event and meeting writes before they reach the store.
type Service struct {
	events   store.Events
	meetings store.Meetings
	today    func() civil.Date
}

// NewService creates an events service. today returns the current local date.
func NewService(events store.Events, meetings store.Meetings, today func() civil.Date) *Service {
	return &Service{events: events, meetings: meetings, today: today}
}

func normalizeEvent(e *models.Event) error {
	e.Name = strings.ToUpper(strings.TrimSpace(e.Name))
	if e.Name == "" {
		return apperr.Invalid("name", "required")
	}
	if !e.StartDate.IsValid() || !e.EndDate.IsValid() {
		return apperr.Invalid("start_date", "start_date and end_date are required")
	}
	if e.EndDate.Before(e.StartDate) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	return nil
}

// CreateEvent validates and stores a new event.
func (s *Service) CreateEvent(ctx context.Context, e *models.Event) error {
	if err := normalizeEvent(e); err != nil {
		return err
	}
	return s.events.Create(ctx, e)
}

// UpdateEvent validates the new range against the event's existing meetings.
func (s *Service) UpdateEvent(ctx context.Context, e *models.Event) error {
	if err := normalizeEvent(e); err != nil {
		return err
	}
	meetings, err := s.meetings.ListByEvent(ctx, e.ID)
	if err != nil {
		return err
	}
	for _, m := range meetings {
		if !e.Contains(m.Date) {
			return apperr.Invalid("end_date", "meeting "+m.Label()+" would fall outside the event")
		}
	}
	return s.events.Update(ctx, e)
}

// CreateMeeting stores a meeting whose date lies within its event. Events that already ended
// accept no new meetings.
func (s *Service) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	e, err := s.events.GetByID(ctx, m.EventID)
	if err != nil {
		return err
	}
	if e.Ended(s.today()) {
		return apperr.Invalid("event_id", "event has already ended")
	}
	if err := checkMeeting(e, m); err != nil {
		return err
	}
	return s.meetings.Create(ctx, m)
}

// UpdateMeeting saves title, date and special flag.
func (s *Service) UpdateMeeting(ctx context.Context, m *models.Meeting) error {
	existing, err := s.meetings.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	e, err := s.events.GetByID(ctx, existing.EventID)
	if err != nil {
		return err
	}
	m.EventID = existing.EventID
	if err := checkMeeting(e, m); err != nil {
		return err
	}
	return s.meetings.Update(ctx, m)
}

func checkMeeting(e *models.Event, m *models.Meeting) error {
	m.Title = strings.ToUpper(strings.TrimSpace(m.Title))
	if !m.Date.IsValid() {
		return apperr.Invalid("date", "required")
	}
	if !e.Contains(m.Date) {
		return apperr.Invalid("date", "must fall between "+e.StartDate.String()+" and "+e.EndDate.String())
	}
	return nil
}

// EventDetail is an event with its ordered meetings.
type EventDetail struct {
	Event    models.Event     `json:"event"`
	Meetings []models.Meeting `json:"meetings"`
}

// Detail loads an event and its meetings.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (*EventDetail, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	meetings, err := s.meetings.ListByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Event: *e, Meetings: meetings}, nil
}
