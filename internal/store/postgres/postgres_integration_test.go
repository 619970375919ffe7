//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite
	pg  *containers.PostgresContainer
	st  store.Store
	ctx context.Context

	event   models.Event
	meeting models.Meeting
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.st = New(s.pg.Pool)
	s.ctx = context.Background()
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(s.ctx, `TRUNCATE team_members, teams, attendances, tokens, meetings, events, admins, attendees, regions`)
	s.Require().NoError(err)

	s.event = models.Event{Name: "CONGRESSO", StartDate: civil.Date{Year: 2025, Month: 6, Day: 1}, EndDate: civil.Date{Year: 2025, Month: 6, Day: 30}}
	s.Require().NoError(s.st.Events.Create(s.ctx, &s.event))
	s.meeting = models.Meeting{EventID: s.event.ID, Date: civil.Date{Year: 2025, Month: 6, Day: 10}}
	s.Require().NoError(s.st.Meetings.Create(s.ctx, &s.meeting))
}

func (s *PostgresSuite) attendee(phone, name string) *models.Attendee {
	a := &models.Attendee{Phone: phone, Name: name}
	s.Require().NoError(s.st.Attendees.Create(s.ctx, a))
	return a
}

func (s *PostgresSuite) TestIssueConcurrentKeepsOneActive() {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.st.Tokens.Issue(s.ctx, s.meeting.ID, uuid.NewString())
			s.NoError(err)
		}()
	}
	wg.Wait()

	list, err := s.st.Tokens.ListByMeeting(s.ctx, s.meeting.ID)
	s.Require().NoError(err)
	s.Len(list, 10)
	active := 0
	for _, t := range list {
		if t.Active {
			active++
		}
	}
	s.Equal(1, active)
}

func (s *PostgresSuite) TestSetActiveDeactivatesOthers() {
	first, err := s.st.Tokens.Issue(s.ctx, s.meeting.ID, "first")
	s.Require().NoError(err)
	second, err := s.st.Tokens.Issue(s.ctx, s.meeting.ID, "second")
	s.Require().NoError(err)

	_, err = s.st.Tokens.SetActive(s.ctx, first.ID, true)
	s.Require().NoError(err)
	active, err := s.st.Tokens.ActiveForMeeting(s.ctx, s.meeting.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)
	got, err := s.st.Tokens.GetByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.False(got.Active)
}

func (s *PostgresSuite) TestRecordConcurrentSingleRow() {
	a := s.attendee("5511900000001", "ANA")
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.st.Attendances.Record(s.ctx, s.meeting.ID, a.ID, time.Now())
			s.NoError(err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	s.EqualValues(1, created.Load())

	entries, err := s.st.Attendances.ListByMeeting(s.ctx, s.meeting.ID)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *PostgresSuite) TestFindByPhoneCanonicalisesLegacy() {
	_, err := s.pg.Pool.Exec(s.ctx, `INSERT INTO attendees (phone, name) VALUES ('(11) 98888-7777', 'LEGADO')`)
	s.Require().NoError(err)

	found, err := s.st.Attendees.FindByPhone(s.ctx, "11988887777")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("11988887777", found.Phone)

	var stored string
	s.Require().NoError(s.pg.Pool.QueryRow(s.ctx, `SELECT phone FROM attendees WHERE id = $1`, found.ID).Scan(&stored))
	s.Equal("11988887777", stored)
}

func (s *PostgresSuite) TestConflictsAreClassified() {
	s.attendee("5511900000001", "ANA")
	err := s.st.Attendees.Create(s.ctx, &models.Attendee{Phone: "5511900000001", Name: "OUTRA"})
	s.ErrorIs(err, apperr.ErrConflict)

	_, err = s.st.Regions.Create(s.ctx, "NORTE")
	s.Require().NoError(err)
	_, err = s.st.Regions.Create(s.ctx, "norte")
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *PostgresSuite) TestRegionDeleteNullsAttendees() {
	region, err := s.st.Regions.Create(s.ctx, "SUL")
	s.Require().NoError(err)
	a := &models.Attendee{Phone: "5511900000001", Name: "ANA", RegionID: &region.ID}
	s.Require().NoError(s.st.Attendees.Create(s.ctx, a))

	s.Require().NoError(s.st.Regions.Delete(s.ctx, region.ID))
	got, err := s.st.Attendees.GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Nil(got.RegionID)
}

func (s *PostgresSuite) TestPurgeKeepsOriginalAdmin() {
	orig := s.attendee("5511900000001", "ORIGINAL")
	other := s.attendee("5511900000002", "OUTRO")
	s.Require().NoError(s.st.Admins.Create(s.ctx, &models.Admin{AttendeeID: orig.ID, PasswordHash: "x", IsOriginal: true}))
	s.Require().NoError(s.st.Admins.Create(s.ctx, &models.Admin{AttendeeID: other.ID, PasswordHash: "y"}))
	_, err := s.st.Tokens.Issue(s.ctx, s.meeting.ID, "v")
	s.Require().NoError(err)
	_, _, err = s.st.Attendances.Record(s.ctx, s.meeting.ID, other.ID, time.Now())
	s.Require().NoError(err)
	team := &models.Team{MeetingID: s.meeting.ID, Name: "A"}
	s.Require().NoError(s.st.Teams.Create(s.ctx, team))
	s.Require().NoError(s.st.Teams.SetMembers(s.ctx, team.ID, []uuid.UUID{other.ID}, &other.ID))

	s.Require().NoError(s.st.Purger.PurgeOperational(s.ctx))

	n, err := s.st.Admins.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	_, err = s.st.Attendees.GetByID(s.ctx, orig.ID)
	s.NoError(err)
	_, err = s.st.Attendees.GetByID(s.ctx, other.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
	events, err := s.st.Events.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(events)
}
