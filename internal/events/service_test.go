package events

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/suite"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/store/memory"
	"github.com/presenca/backend/pkg/apperr"
)

func day(m time.Month, d int) civil.Date { return civil.Date{Year: 2025, Month: m, Day: d} }

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	st    store.Store
	svc   *Service
	today civil.Date
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.st = memory.New().Store()
	s.today = day(time.June, 15)
	s.svc = NewService(s.st.Events, s.st.Meetings, func() civil.Date { return s.today })
}

func (s *ServiceSuite) event(start, end civil.Date) *models.Event {
	e := &models.Event{Name: " congresso ", StartDate: start, EndDate: end}
	s.Require().NoError(s.svc.CreateEvent(s.ctx, e))
	return e
}

func (s *ServiceSuite) TestCreateEventNormalizes() {
	e := s.event(day(time.June, 1), day(time.June, 30))
	s.Equal("CONGRESSO", e.Name)
}

func (s *ServiceSuite) TestCreateEventValidation() {
	tests := []struct {
		name string
		e    models.Event
	}{
		{"blank name", models.Event{Name: "  ", StartDate: day(time.June, 1), EndDate: day(time.June, 2)}},
		{"missing dates", models.Event{Name: "X"}},
		{"reversed range", models.Event{Name: "X", StartDate: day(time.June, 2), EndDate: day(time.June, 1)}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			e := tt.e
			s.ErrorIs(s.svc.CreateEvent(s.ctx, &e), apperr.ErrValidation)
		})
	}
}

func (s *ServiceSuite) TestSingleDayEventAllowed() {
	e := s.event(day(time.June, 20), day(time.June, 20))
	m := &models.Meeting{EventID: e.ID, Date: day(time.June, 20)}
	s.NoError(s.svc.CreateMeeting(s.ctx, m))
}

func (s *ServiceSuite) TestCreateMeeting() {
	e := s.event(day(time.June, 1), day(time.June, 30))

	m := &models.Meeting{EventID: e.ID, Title: " abertura ", Date: day(time.June, 10)}
	s.Require().NoError(s.svc.CreateMeeting(s.ctx, m))
	s.Equal("ABERTURA", m.Title)

	outside := &models.Meeting{EventID: e.ID, Date: day(time.July, 1)}
	s.ErrorIs(s.svc.CreateMeeting(s.ctx, outside), apperr.ErrValidation)

	undated := &models.Meeting{EventID: e.ID}
	s.ErrorIs(s.svc.CreateMeeting(s.ctx, undated), apperr.ErrValidation)
}

func (s *ServiceSuite) TestCreateMeetingOnEndedEvent() {
	e := s.event(day(time.May, 1), day(time.May, 31))
	m := &models.Meeting{EventID: e.ID, Date: day(time.May, 20)}
	s.ErrorIs(s.svc.CreateMeeting(s.ctx, m), apperr.ErrValidation)
}

func (s *ServiceSuite) TestUpdateEventKeepsMeetingsInside() {
	e := s.event(day(time.June, 1), day(time.June, 30))
	m := &models.Meeting{EventID: e.ID, Date: day(time.June, 25)}
	s.Require().NoError(s.svc.CreateMeeting(s.ctx, m))

	shrunk := *e
	shrunk.EndDate = day(time.June, 20)
	s.ErrorIs(s.svc.UpdateEvent(s.ctx, &shrunk), apperr.ErrValidation)

	grown := *e
	grown.EndDate = day(time.July, 10)
	s.Require().NoError(s.svc.UpdateEvent(s.ctx, &grown))
	got, err := s.st.Events.GetByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(day(time.July, 10), got.EndDate)
}

func (s *ServiceSuite) TestUpdateMeeting() {
	e := s.event(day(time.June, 1), day(time.June, 30))
	m := &models.Meeting{EventID: e.ID, Date: day(time.June, 10)}
	s.Require().NoError(s.svc.CreateMeeting(s.ctx, m))

	upd := &models.Meeting{ID: m.ID, Title: "especial", Date: day(time.June, 12), IsSpecial: true}
	s.Require().NoError(s.svc.UpdateMeeting(s.ctx, upd))
	s.Equal(e.ID, upd.EventID)

	d, err := s.svc.Detail(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().Len(d.Meetings, 1)
	s.Equal("ESPECIAL", d.Meetings[0].Title)
	s.True(d.Meetings[0].IsSpecial)

	bad := &models.Meeting{ID: m.ID, Date: day(time.August, 1)}
	s.ErrorIs(s.svc.UpdateMeeting(s.ctx, bad), apperr.ErrValidation)
}
