// Package checkin runs a scan through token resolution, admission, identity lookup and the
// idempotent attendance insert.
//
//	resolve token -> redirect if inactive and replaced -> admission -> [closed]
//	  -> attendee lookup -> [needs_registration] | record -> [already_present] | [confirmed]
//
// Only attendees and attendances are ever written; tokens and meetings are read-only here.
package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/admission"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/realtime"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/utils"
)

// Status is the terminal state of a scan.
type Status string

const (
	StatusOpen              Status = "open" // Inspect only: the form may be shown
	StatusClosed            Status = "closed"
	StatusNeedsRegistration Status = "needs_registration"
	StatusAlreadyPresent    Status = "already_present"
	StatusConfirmed         Status = "confirmed"
)

// Outcome is what the scan entry point renders.
type Outcome struct {
	Status Status           `json:"status"`
	Reason admission.Reason `json:"reason,omitempty"`
	// Token is the effective token value; differs from the scanned one when Redirected.
	Token      string             `json:"token"`
	Redirected bool               `json:"redirected"`
	Meeting    *models.Meeting    `json:"meeting"`
	Event      *models.Event      `json:"event"`
	Phone      string             `json:"phone,omitempty"`
	Attendee   *models.Attendee   `json:"attendee,omitempty"`
	Attendance *models.Attendance `json:"attendance,omitempty"`
}

// RegisterInput is a first-time attendee's registration form.
type RegisterInput struct {
	Token    string
	Phone    string
	Name     string
	RegionID *uuid.UUID
	Email    string
}

// Publisher pushes live updates to dashboard viewers of an event.
type Publisher interface {
	Publish(ctx context.Context, eventID uuid.UUID, kind string, payload interface{}) error
}

// Processor orchestrates check-ins and registrations.
type Processor struct {
	tokens      store.Tokens
	meetings    store.Meetings
	events      store.Events
	attendees   store.Attendees
	attendances store.Attendances
	regions     store.Regions
	gate        admission.Gate
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewProcessor creates a processor. publisher and m may be nil.
func NewProcessor(st store.Store, gate admission.Gate, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		tokens:      st.Tokens,
		meetings:    st.Meetings,
		events:      st.Events,
		attendees:   st.Attendees,
		attendances: st.Attendances,
		regions:     st.Regions,
		gate:        gate,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// resolve loads the scanned token with its meeting and event, redirecting an inactive token to
// the meeting's active one when there is one.
func (p *Processor) resolve(ctx context.Context, value string) (*Outcome, admission.Target, error) {
	var target admission.Target
	tok, err := p.tokens.Resolve(ctx, value)
	if err != nil {
		return nil, target, err
	}
	out := &Outcome{Token: tok.Value}
	if !tok.Active {
		active, err := p.tokens.ActiveForMeeting(ctx, tok.MeetingID)
		if err != nil {
			return nil, target, err
		}
		if active != nil {
			tok = active
			out.Token = active.Value
			out.Redirected = true
		}
	}
	if out.Meeting, err = p.meetings.GetByID(ctx, tok.MeetingID); err != nil {
		return nil, target, err
	}
	if out.Event, err = p.events.GetByID(ctx, out.Meeting.EventID); err != nil {
		return nil, target, err
	}
	target = admission.Target{Token: tok, Meeting: out.Meeting, Event: out.Event}
	return out, target, nil
}

// admit resolves and gates. A nil error with Status closed means the caller must stop.
func (p *Processor) admit(ctx context.Context, value string, now time.Time) (*Outcome, error) {
	out, target, err := p.resolve(ctx, value)
	if err != nil {
		return nil, err
	}
	d := p.gate.Decide(target, now)
	out.Reason = d.Reason
	if d.Open {
		out.Status = StatusOpen
	} else {
		out.Status = StatusClosed
	}
	return out, nil
}

// Inspect is the form-render path: it resolves and gates without any side effect.
func (p *Processor) Inspect(ctx context.Context, value string, now time.Time) (Outcome, error) {
	out, err := p.admit(ctx, value, now)
	if err != nil {
		return Outcome{}, err
	}
	return *out, nil
}

// CheckIn records the attendee owning phone at the token's meeting.
func (p *Processor) CheckIn(ctx context.Context, value, phone string, now time.Time) (Outcome, error) {
	canonical := utils.CanonicalPhone(phone)
	if canonical == "" {
		return Outcome{}, apperr.Invalid("phone", "must contain digits")
	}
	out, err := p.admit(ctx, value, now)
	if err != nil {
		return Outcome{}, err
	}
	out.Phone = canonical
	if out.Status == StatusClosed {
		return p.finish(out), nil
	}

	a, err := p.attendees.FindByPhone(ctx, canonical)
	if err != nil {
		p.logger.Error("attendee lookup failed", zap.Error(err), zap.String("phone", utils.MaskPhone(canonical)))
		return Outcome{}, err
	}
	if a == nil {
		out.Status = StatusNeedsRegistration
		return p.finish(out), nil
	}
	return p.record(ctx, out, a, now)
}

// Register creates the attendee and its first attendance. Admission is checked again since the
// window may have closed while the form was being filled in.
// A closed window wins over an incomplete form.
func (p *Processor) Register(ctx context.Context, in RegisterInput, now time.Time) (Outcome, error) {
	canonical := utils.CanonicalPhone(in.Phone)
	if canonical == "" {
		return Outcome{}, apperr.Invalid("phone", "must contain digits")
	}
	out, err := p.admit(ctx, in.Token, now)
	if err != nil {
		return Outcome{}, err
	}
	out.Phone = canonical
	if out.Status == StatusClosed {
		return p.finish(out), nil
	}
	a, err := p.newAttendee(ctx, canonical, in)
	if err != nil {
		return Outcome{}, err
	}

	existing, err := p.attendees.FindByPhone(ctx, a.Phone)
	if err != nil {
		return Outcome{}, err
	}
	if existing == nil {
		err = p.attendees.Create(ctx, a)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			// Registered concurrently with the same phone; use the winner's record.
			winner, ferr := p.attendees.FindByPhone(ctx, a.Phone)
			if ferr != nil {
				return Outcome{}, ferr
			}
			if winner == nil {
				return Outcome{}, err
			}
			a = winner
		case err != nil:
			p.logger.Error("create attendee failed", zap.Error(err), zap.String("phone", utils.MaskPhone(a.Phone)))
			return Outcome{}, err
		default:
			p.logger.Info("attendee registered", zap.String("attendee_id", a.ID.String()), zap.String("phone", utils.MaskPhone(a.Phone)))
		}
	} else {
		a = existing
	}
	return p.record(ctx, out, a, now)
}

func (p *Processor) newAttendee(ctx context.Context, phone string, in RegisterInput) (*models.Attendee, error) {
	a := &models.Attendee{
		Phone:    phone,
		Name:     strings.ToUpper(strings.TrimSpace(in.Name)),
		RegionID: in.RegionID,
		Email:    strings.TrimSpace(in.Email),
	}
	if a.Name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	if a.RegionID == nil {
		return nil, apperr.Invalid("region_id", "required")
	}
	r, err := p.regions.GetByID(ctx, *a.RegionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Invalid("region_id", "unknown region")
	}
	if err != nil {
		return nil, err
	}
	// The label outlives the region, so breakdowns keep grouping by it after a region delete.
	a.RegionName = r.Name
	a.RegionLabel = r.Name
	return a, nil
}

// record performs the conditional insert. A lost race on the unique pair is the same as
// finding the row: the attendee is already present.
func (p *Processor) record(ctx context.Context, out *Outcome, a *models.Attendee, now time.Time) (Outcome, error) {
	out.Attendee = a
	att, created, err := p.attendances.Record(ctx, out.Meeting.ID, a.ID, p.gate.Local(now))
	if errors.Is(err, apperr.ErrConflict) {
		p.metrics.IncrementConflict()
		att, err = p.attendances.Find(ctx, out.Meeting.ID, a.ID)
		created = false
	}
	if err != nil {
		p.logger.Error("record attendance failed", zap.Error(err),
			zap.String("meeting_id", out.Meeting.ID.String()), zap.String("attendee_id", a.ID.String()))
		return Outcome{}, err
	}
	out.Attendance = att
	if !created {
		out.Status = StatusAlreadyPresent
		return p.finish(out), nil
	}
	out.Status = StatusConfirmed
	p.notify(ctx, out)
	return p.finish(out), nil
}

func (p *Processor) notify(ctx context.Context, out *Outcome) {
	if p.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"meeting_id":    out.Meeting.ID,
		"attendee_id":   out.Attendee.ID,
		"name":          out.Attendee.Name,
		"region":        out.Attendee.Label(),
		"confirmed_at":  out.Attendance.ConfirmedAt,
		"attendance_id": out.Attendance.ID,
	}
	if err := p.publisher.Publish(ctx, out.Event.ID, realtime.EventAttendanceConfirmed, payload); err != nil {
		p.logger.Warn("publish attendance failed", zap.Error(err), zap.String("event_id", out.Event.ID.String()))
	}
}

func (p *Processor) finish(out *Outcome) Outcome {
	p.metrics.IncrementOutcome(string(out.Status))
	p.logger.Info("check-in",
		zap.String("status", string(out.Status)),
		zap.String("reason", string(out.Reason)),
		zap.String("meeting_id", out.Meeting.ID.String()),
		zap.Bool("redirected", out.Redirected),
		zap.String("phone", utils.MaskPhone(out.Phone)),
	)
	return *out
}
