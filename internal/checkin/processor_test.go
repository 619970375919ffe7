package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/presenca/backend/internal/admission"
	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/realtime"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/store/memory"
	"github.com/presenca/backend/pkg/apperr"
)

type published struct {
	eventID uuid.UUID
	kind    string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, eventID uuid.UUID, kind string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{eventID, kind})
	return p.err
}

// conflictingAttendances simulates losing the insert race to a concurrent scan.
type conflictingAttendances struct {
	store.Attendances
}

func (c conflictingAttendances) Record(ctx context.Context, meetingID, attendeeID uuid.UUID, at time.Time) (*models.Attendance, bool, error) {
	if _, _, err := c.Attendances.Record(ctx, meetingID, attendeeID, at); err != nil {
		return nil, false, err
	}
	return nil, false, apperr.ErrConflict
}

type ProcessorSuite struct {
	suite.Suite
	ctx     context.Context
	st      store.Store
	pub     *recordingPublisher
	metrics *metrics.Metrics
	proc    *Processor

	region  *models.Region
	event   models.Event
	meeting models.Meeting
	token   *models.Token
	now     time.Time
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctx = context.Background()
	s.st = memory.New().Store()
	s.pub = &recordingPublisher{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.proc = NewProcessor(s.st, admission.NewGate(time.UTC), s.pub, s.metrics, nil)

	var err error
	s.region, err = s.st.Regions.Create(s.ctx, "norte")
	s.Require().NoError(err)

	s.event = models.Event{
		Name:      "CURSO 2025",
		StartDate: civil.Date{Year: 2025, Month: time.June, Day: 1},
		EndDate:   civil.Date{Year: 2025, Month: time.December, Day: 31},
	}
	s.Require().NoError(s.st.Events.Create(s.ctx, &s.event))
	s.meeting = models.Meeting{EventID: s.event.ID, Date: civil.Date{Year: 2025, Month: time.June, Day: 10}}
	s.Require().NoError(s.st.Meetings.Create(s.ctx, &s.meeting))
	s.token, err = s.st.Tokens.Issue(s.ctx, s.meeting.ID, "tok-one")
	s.Require().NoError(err)

	s.now = time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
}

func (s *ProcessorSuite) addAttendee(phone, name string) *models.Attendee {
	a := &models.Attendee{Phone: phone, Name: name, RegionID: &s.region.ID}
	s.Require().NoError(s.st.Attendees.Create(s.ctx, a))
	return a
}

func (s *ProcessorSuite) rows() int {
	list, err := s.st.Attendances.ListByMeeting(s.ctx, s.meeting.ID)
	s.Require().NoError(err)
	return len(list)
}

func (s *ProcessorSuite) TestCheckInIsIdempotent() {
	s.addAttendee("5511999990000", "ANA")

	first, err := s.proc.CheckIn(s.ctx, "tok-one", "+55 (11) 99999-0000", s.now)
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, first.Status)
	s.Require().NotNil(first.Attendance)
	s.Equal(s.now, first.Attendance.ConfirmedAt)

	second, err := s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(StatusAlreadyPresent, second.Status)
	s.Equal(first.Attendance.ID, second.Attendance.ID)

	s.Equal(1, s.rows())
	s.Equal([]published{{s.event.ID, realtime.EventAttendanceConfirmed}}, s.pub.msgs)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CheckInOutcome.WithLabelValues("confirmed")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CheckInOutcome.WithLabelValues("already_present")))
}

func (s *ProcessorSuite) TestUnknownPhoneNeedsRegistration() {
	out, err := s.proc.CheckIn(s.ctx, "tok-one", "(11) 98888-7777", s.now)
	s.Require().NoError(err)
	s.Equal(StatusNeedsRegistration, out.Status)
	s.Equal("11988887777", out.Phone)
	s.Equal("tok-one", out.Token)
	s.Nil(out.Attendee)
	s.Equal(0, s.rows())
}

func (s *ProcessorSuite) TestCheckInValidation() {
	s.Run("phone without digits", func() {
		_, err := s.proc.CheckIn(s.ctx, "tok-one", " - ", s.now)
		s.ErrorIs(err, apperr.ErrValidation)
	})
	s.Run("unknown token", func() {
		_, err := s.proc.CheckIn(s.ctx, "nope", "5511999990000", s.now)
		s.ErrorIs(err, apperr.ErrNotFound)
	})
}

func (s *ProcessorSuite) TestClosedHasNoSideEffects() {
	s.addAttendee("5511999990000", "ANA")

	out, err := s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", time.Date(2025, 6, 11, 17, 59, 59, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(StatusClosed, out.Status)
	s.Equal(admission.ReasonOutsideWindow, out.Reason)
	s.Equal(0, s.rows())
	s.Empty(s.pub.msgs)

	out, err = s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", time.Date(2025, 6, 11, 18, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, out.Status)
}

func (s *ProcessorSuite) TestRedirectMatchesActiveToken() {
	s.addAttendee("5511999990000", "ANA")
	fresh, err := s.st.Tokens.Issue(s.ctx, s.meeting.ID, "tok-two")
	s.Require().NoError(err)

	viaOld, err := s.proc.Inspect(s.ctx, "tok-one", s.now)
	s.Require().NoError(err)
	viaNew, err := s.proc.Inspect(s.ctx, "tok-two", s.now)
	s.Require().NoError(err)

	s.True(viaOld.Redirected)
	s.False(viaNew.Redirected)
	viaOld.Redirected = false
	s.Equal(viaNew, viaOld)
	s.Equal(fresh.Value, viaOld.Token)

	out, err := s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", s.now)
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, out.Status)
	s.Equal("tok-two", out.Token)
}

func (s *ProcessorSuite) TestInactiveWithoutReplacementIsClosed() {
	_, err := s.st.Tokens.SetActive(s.ctx, s.token.ID, false)
	s.Require().NoError(err)

	out, err := s.proc.Inspect(s.ctx, "tok-one", s.now)
	s.Require().NoError(err)
	s.Equal(StatusClosed, out.Status)
	s.Equal(admission.ReasonTokenInactive, out.Reason)
	s.False(out.Redirected)
}

func (s *ProcessorSuite) TestRegister() {
	s.Run("creates attendee and first attendance", func() {
		out, err := s.proc.Register(s.ctx, RegisterInput{
			Token: "tok-one", Phone: "+55 11 97777-6666", Name: "  maria silva ", RegionID: &s.region.ID,
		}, s.now)
		s.Require().NoError(err)
		s.Equal(StatusConfirmed, out.Status)
		s.Equal("MARIA SILVA", out.Attendee.Name)
		s.Equal("5511977776666", out.Attendee.Phone)
		s.Equal("NORTE", out.Attendee.Label())

		again, err := s.proc.CheckIn(s.ctx, "tok-one", "5511977776666", s.now)
		s.Require().NoError(err)
		s.Equal(StatusAlreadyPresent, again.Status)
	})

	s.Run("existing phone is not duplicated", func() {
		out, err := s.proc.Register(s.ctx, RegisterInput{
			Token: "tok-one", Phone: "5511977776666", Name: "Other", RegionID: &s.region.ID,
		}, s.now)
		s.Require().NoError(err)
		s.Equal(StatusAlreadyPresent, out.Status)
		s.Equal("MARIA SILVA", out.Attendee.Name)
	})

	s.Run("missing fields", func() {
		missingRegion := RegisterInput{Token: "tok-one", Phone: "5511900000000", Name: "X"}
		missingName := RegisterInput{Token: "tok-one", Phone: "5511900000000", RegionID: &s.region.ID}
		unknownRegion := uuid.New()
		badRegion := RegisterInput{Token: "tok-one", Phone: "5511900000000", Name: "X", RegionID: &unknownRegion}
		for _, in := range []RegisterInput{missingRegion, missingName, badRegion} {
			_, err := s.proc.Register(s.ctx, in, s.now)
			s.ErrorIs(err, apperr.ErrValidation)
		}
	})

	s.Run("closed window wins over an incomplete form", func() {
		out, err := s.proc.Register(s.ctx, RegisterInput{Token: "tok-one", Phone: "5511955554444"},
			time.Date(2025, 6, 11, 17, 0, 0, 0, time.UTC))
		s.Require().NoError(err)
		s.Equal(StatusClosed, out.Status)
		s.Equal("5511955554444", out.Phone)
	})

	s.Run("window closed during form fill", func() {
		out, err := s.proc.Register(s.ctx, RegisterInput{
			Token: "tok-one", Phone: "5511911112222", Name: "Late", RegionID: &s.region.ID,
		}, time.Date(2025, 6, 11, 23, 30, 1, 0, time.UTC))
		s.Require().NoError(err)
		s.Equal(StatusClosed, out.Status)
		a, err := s.st.Attendees.FindByPhone(s.ctx, "5511911112222")
		s.Require().NoError(err)
		s.Nil(a)
	})
}

func (s *ProcessorSuite) TestConcurrentScansRecordOnce() {
	s.addAttendee("5511999990000", "ANA")

	const scans = 20
	var wg sync.WaitGroup
	statuses := make(chan Status, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", s.now)
			if err == nil {
				statuses <- out.Status
			}
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[Status]int{}
	for st := range statuses {
		counts[st]++
	}
	s.Equal(map[Status]int{StatusConfirmed: 1, StatusAlreadyPresent: scans - 1}, counts)
	s.Equal(1, s.rows())
}

func (s *ProcessorSuite) TestLostInsertRaceIsAlreadyPresent() {
	s.addAttendee("5511999990000", "ANA")
	st := s.st
	st.Attendances = conflictingAttendances{s.st.Attendances}
	proc := NewProcessor(st, admission.NewGate(time.UTC), s.pub, s.metrics, nil)

	out, err := proc.CheckIn(s.ctx, "tok-one", "5511999990000", s.now)
	s.Require().NoError(err)
	s.Equal(StatusAlreadyPresent, out.Status)
	s.NotNil(out.Attendance)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CheckInConflicts))
}

func (s *ProcessorSuite) TestPublishFailureDoesNotChangeOutcome() {
	s.addAttendee("5511999990000", "ANA")
	s.pub.err = errors.New("redis down")

	out, err := s.proc.CheckIn(s.ctx, "tok-one", "5511999990000", s.now)
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, out.Status)
}

func (s *ProcessorSuite) TestRegisteredRegionSurvivesRegionDelete() {
	out, err := s.proc.Register(s.ctx, RegisterInput{
		Token: "tok-one", Phone: "5511966665555", Name: "Joana", RegionID: &s.region.ID,
	}, s.now)
	s.Require().NoError(err)
	s.Require().Equal(StatusConfirmed, out.Status)
	s.Equal("NORTE", out.Attendee.RegionLabel)

	s.Require().NoError(s.st.Regions.Delete(s.ctx, s.region.ID))

	meetings, err := s.st.Meetings.ListByEvent(s.ctx, s.event.ID)
	s.Require().NoError(err)
	entries, err := s.st.Attendances.ListByEvent(s.ctx, s.event.ID)
	s.Require().NoError(err)
	rows := analytics.Compute(analytics.EventInput{Event: s.event, Meetings: meetings, Entries: entries}, analytics.Filter{})
	s.Require().Len(rows, 1)
	s.Equal(map[string]int{"NORTE": 1}, rows[0].ByRegion)
}
