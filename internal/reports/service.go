package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
)

// Report kinds.
const (
	KindDashboard = "dashboard"
	KindMeeting   = "meeting"
	KindEvent     = "event"
)

// Request selects what to export. ID is the meeting or event id; Filter and Today apply to
// the dashboard only.
type Request struct {
	Kind   string
	ID     uuid.UUID
	Filter analytics.Filter
	Today  civil.Date
}

// Document is a rendered report ready to send or store.
type Document struct {
	Name        string
	ContentType string
	Extension   string
	Body        []byte
}

// Service builds report tables from analytics and renders them.
type Service struct {
	analytics   *analytics.Service
	meetings    store.Meetings
	attendances store.Attendances
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewService creates a report service.
func NewService(a *analytics.Service, st store.Store, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{analytics: a, meetings: st.Meetings, attendances: st.Attendances, metrics: m, logger: logger}
}

// Export renders the requested report in format.
func (s *Service) Export(ctx context.Context, req Request, format string) (*Document, error) {
	r, err := ForFormat(format)
	if err != nil {
		return nil, err
	}
	t, name, err := s.table(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := r.Render(t)
	if err != nil {
		s.logger.Error("render report failed", zap.String("kind", req.Kind), zap.String("format", r.Extension()), zap.Error(err))
		return nil, fmt.Errorf("render %s: %w", r.Extension(), err)
	}
	s.metrics.IncrementReport(r.Extension(), req.Kind)
	return &Document{
		Name:        name + "." + r.Extension(),
		ContentType: r.ContentType(),
		Extension:   r.Extension(),
		Body:        body,
	}, nil
}

func (s *Service) table(ctx context.Context, req Request) (Table, string, error) {
	switch req.Kind {
	case KindDashboard:
		d, err := s.analytics.Dashboard(ctx, req.Filter, req.Today)
		if err != nil {
			return Table{}, "", err
		}
		return DashboardTable(d), "dashboard_stats", nil
	case KindMeeting:
		m, err := s.meetings.GetByID(ctx, req.ID)
		if err != nil {
			return Table{}, "", err
		}
		entries, err := s.attendances.ListByMeeting(ctx, m.ID)
		if err != nil {
			return Table{}, "", err
		}
		name := m.Title
		if name == "" {
			name = m.Date.In(time.UTC).Format("02-01-2006")
		}
		return MeetingTable(*m, entries), FileName(name), nil
	case KindEvent:
		e, mx, err := s.analytics.EventMatrix(ctx, req.ID)
		if err != nil {
			return Table{}, "", err
		}
		return MatrixTable(e, mx), FileName(e.Name), nil
	}
	return Table{}, "", apperr.Invalid("kind", fmt.Sprintf("unknown report kind %q", req.Kind))
}

// FileName turns a display name into a download-safe base name.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "relatorio"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}
