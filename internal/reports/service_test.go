package reports

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/store/memory"
	"github.com/presenca/backend/pkg/apperr"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	st      store.Store
	metrics *metrics.Metrics
	svc     *Service

	event    models.Event
	meetings []models.Meeting
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.st = memory.New().Store()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc = NewService(analytics.NewService(s.st, nil, nil, nil), s.st, s.metrics, nil)

	s.event = models.Event{Name: "FACE A FACE", StartDate: civil.Date{Year: 2025, Month: 6, Day: 1}, EndDate: civil.Date{Year: 2025, Month: 6, Day: 30}}
	s.Require().NoError(s.st.Events.Create(s.ctx, &s.event))

	norte, err := s.st.Regions.Create(s.ctx, "NORTE")
	s.Require().NoError(err)
	people := map[string]*models.Attendee{}
	for i, name := range []string{"CARLA", "ANA", "BRUNO"} {
		a := &models.Attendee{Phone: fmt.Sprintf("55119%07d", i), Name: name}
		if name != "BRUNO" {
			a.RegionID = &norte.ID
		}
		s.Require().NoError(s.st.Attendees.Create(s.ctx, a))
		people[name] = a
	}

	at := time.Date(2025, 6, 3, 19, 30, 0, 0, time.UTC)
	for _, fixture := range []struct {
		title string
		day   int
		who   []string
	}{
		{"ABERTURA", 2, []string{"CARLA", "ANA"}},
		{"", 9, []string{"ANA", "BRUNO"}},
	} {
		m := models.Meeting{EventID: s.event.ID, Title: fixture.title, Date: s.event.StartDate.AddDays(fixture.day)}
		s.Require().NoError(s.st.Meetings.Create(s.ctx, &m))
		s.meetings = append(s.meetings, m)
		for _, n := range fixture.who {
			_, _, err := s.st.Attendances.Record(s.ctx, m.ID, people[n].ID, at)
			s.Require().NoError(err)
		}
	}
}

func (s *ServiceSuite) rows(doc *Document) [][]string {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	s.Require().NoError(err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	s.Require().NoError(err)
	return rows
}

func (s *ServiceSuite) TestMeetingExport() {
	doc, err := s.svc.Export(s.ctx, Request{Kind: KindMeeting, ID: s.meetings[0].ID}, "xlsx")
	s.Require().NoError(err)
	s.Equal("ABERTURA.xlsx", doc.Name)

	rows := s.rows(doc)
	s.Require().Len(rows, 4)
	s.Equal([]string{"Código", "Nome", "Telefone", "Região", "Confirmado em"}, rows[0])
	s.Equal("ANA", rows[1][1])
	s.Equal("CARLA", rows[2][1])
	s.Equal("NORTE", rows[1][3])
	s.Equal("03/06/2025 19:30", rows[1][4])
	s.Equal("Total presentes", rows[3][3])
	s.Equal("2", rows[3][4])

	s.Equal(1.0, testutil.ToFloat64(s.metrics.ReportsRendered.WithLabelValues("xlsx", KindMeeting)))
}

func (s *ServiceSuite) TestMeetingExportUsesDateWhenUntitled() {
	doc, err := s.svc.Export(s.ctx, Request{Kind: KindMeeting, ID: s.meetings[1].ID}, "pdf")
	s.Require().NoError(err)
	s.Equal("10-06-2025.pdf", doc.Name)
	s.Equal("application/pdf", doc.ContentType)
}

func (s *ServiceSuite) TestEventExport() {
	doc, err := s.svc.Export(s.ctx, Request{Kind: KindEvent, ID: s.event.ID}, "xlsx")
	s.Require().NoError(err)
	s.Equal("FACE_A_FACE.xlsx", doc.Name)

	rows := s.rows(doc)
	s.Require().Len(rows, 5)
	s.Equal([]string{"Código", "Nome", "Telefone", "Região", "03/06/2025", "10/06/2025", "Total"}, rows[0])
	s.Equal([]string{"1", "ANA", "551190000001", "NORTE", Present, Present, "2"}, rows[1])
	s.Equal([]string{"2", "BRUNO", "551190000002", analytics.Unassigned, Absent, Present, "1"}, rows[2])
	s.Equal([]string{"3", "CARLA", "551190000000", "NORTE", Present, Absent, "1"}, rows[3])
	s.Equal("P 2 / F 1", rows[4][4])
	s.Equal("P 2 / F 1", rows[4][5])
}

func (s *ServiceSuite) TestDashboardExport() {
	doc, err := s.svc.Export(s.ctx, Request{Kind: KindDashboard, Today: civil.Date{Year: 2025, Month: 6, Day: 15}}, "xlsx")
	s.Require().NoError(err)
	s.Equal("dashboard_stats.xlsx", doc.Name)

	rows := s.rows(doc)
	s.Require().Len(rows, 3)
	s.Equal([]string{"Evento", "Reunião", "Data", "Total", "Novos", "Faltaram", "Retornaram", "Região NORTE", "Região " + analytics.Unassigned}, rows[0])
	s.Equal([]string{"FACE A FACE", "ABERTURA", "03/06/2025", "2", "2", "0", "0", "2", "0"}, rows[1])
	s.Equal([]string{"FACE A FACE", "10/06/2025", "10/06/2025", "2", "1", "1", "1", "1", "1"}, rows[2])
}

func (s *ServiceSuite) TestErrors() {
	_, err := s.svc.Export(s.ctx, Request{Kind: KindEvent, ID: s.event.ID}, "docx")
	s.ErrorIs(err, apperr.ErrValidation)

	_, err = s.svc.Export(s.ctx, Request{Kind: "weekly"}, "pdf")
	s.ErrorIs(err, apperr.ErrValidation)

	_, err = s.svc.Export(s.ctx, Request{Kind: KindMeeting, ID: uuid.New()}, "pdf")
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestFileName() {
	s.Equal("A_B-C", FileName(" A B/C "))
	s.Equal("relatorio", FileName(""))
}
