package analytics

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
)

// OpenTokenLister lists tokens open for display; satisfied by *tokens.Registry.
type OpenTokenLister interface {
	ListOpen(ctx context.Context, today civil.Date) ([]models.OpenToken, error)
}

// EventStats is an event with its computed rows.
type EventStats struct {
	Event        models.Event   `json:"event"`
	Rows         []Row          `json:"rows"`
	RegionTotals map[string]int `json:"region_totals"`
}

// Dashboard is the administrator overview across all events.
type Dashboard struct {
	Events       []EventStats       `json:"events"`
	RegionTotals map[string]int     `json:"region_totals"`
	OpenTokens   []models.OpenToken `json:"open_tokens"`
}

// Service loads analytics inputs from the store. Reads run at read-committed consistency;
// counts may trail concurrent check-ins.
type Service struct {
	events      store.Events
	meetings    store.Meetings
	attendances store.Attendances
	open        OpenTokenLister
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewService creates an analytics service. open may be nil when open tokens are not needed.
func NewService(st store.Store, open OpenTokenLister, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: st.Events, meetings: st.Meetings, attendances: st.Attendances, open: open, metrics: m, logger: logger}
}

// Load reads an event with its meetings and attendance entries.
func (s *Service) Load(ctx context.Context, eventID uuid.UUID) (EventInput, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return EventInput{}, err
	}
	return s.load(ctx, *e)
}

func (s *Service) load(ctx context.Context, e models.Event) (EventInput, error) {
	meetings, err := s.meetings.ListByEvent(ctx, e.ID)
	if err != nil {
		return EventInput{}, err
	}
	entries, err := s.attendances.ListByEvent(ctx, e.ID)
	if err != nil {
		return EventInput{}, err
	}
	return EventInput{Event: e, Meetings: meetings, Entries: entries}, nil
}

// Event computes the rows of one event.
func (s *Service) Event(ctx context.Context, eventID uuid.UUID, f Filter) (*EventStats, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAnalytics(time.Since(start)) }()

	in, err := s.Load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows := Compute(in, f)
	return &EventStats{Event: in.Event, Rows: rows, RegionTotals: RegionTotals(rows)}, nil
}

// Dashboard computes every event ordered by start date, with region totals over the included
// rows and the tokens still open at today.
func (s *Service) Dashboard(ctx context.Context, f Filter, today civil.Date) (*Dashboard, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAnalytics(time.Since(start)) }()

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Events: make([]EventStats, 0, len(events)), RegionTotals: make(map[string]int)}
	for _, e := range events {
		in, err := s.load(ctx, e)
		if err != nil {
			return nil, err
		}
		rows := Compute(in, f)
		if len(rows) == 0 && !f.Empty() {
			continue
		}
		totals := RegionTotals(rows)
		for label, n := range totals {
			d.RegionTotals[label] += n
		}
		d.Events = append(d.Events, EventStats{Event: e, Rows: rows, RegionTotals: totals})
	}
	if s.open != nil {
		if d.OpenTokens, err = s.open.ListOpen(ctx, today); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MeetingAbsentees returns who attended the meeting's event but missed this meeting.
func (s *Service) MeetingAbsentees(ctx context.Context, meetingID uuid.UUID) (*models.Meeting, []models.Attendee, error) {
	m, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, nil, err
	}
	in, err := s.Load(ctx, m.EventID)
	if err != nil {
		return nil, nil, err
	}
	return m, Absentees(in, meetingID), nil
}

// EventMatrix builds the presence grid of an event.
func (s *Service) EventMatrix(ctx context.Context, eventID uuid.UUID) (models.Event, Matrix, error) {
	in, err := s.Load(ctx, eventID)
	if err != nil {
		return models.Event{}, Matrix{}, err
	}
	return in.Event, BuildMatrix(in), nil
}
