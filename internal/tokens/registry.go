// Package tokens manages check-in tokens: issuing, resolving and toggling, plus the QR image endpoint.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
)

// valueBytes gives 192 bits of entropy per token.
const valueBytes = 24

// NewValue returns a fresh URL-safe opaque token value.
func NewValue() (string, error) {
	b := make([]byte, valueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Registry is the administrative entry point for tokens. No admission gating applies here.
type Registry struct {
	tokens   store.Tokens
	meetings store.Meetings
	events   store.Events
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRegistry creates a token registry.
func NewRegistry(tokens store.Tokens, meetings store.Meetings, events store.Events, m *metrics.Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{tokens: tokens, meetings: meetings, events: events, metrics: m, logger: logger}
}

// Issue replaces the meeting's active token with a new one.
func (r *Registry) Issue(ctx context.Context, meetingID uuid.UUID) (*models.Token, error) {
	value, err := NewValue()
	if err != nil {
		return nil, err
	}
	t, err := r.tokens.Issue(ctx, meetingID, value)
	if err != nil {
		return nil, err
	}
	r.metrics.IncrementTokensIssued()
	r.logger.Info("token issued", zap.String("meeting_id", meetingID.String()), zap.String("token_id", t.ID.String()))
	return t, nil
}

// Resolve looks a token up by value.
func (r *Registry) Resolve(ctx context.Context, value string) (*models.Token, error) {
	return r.tokens.Resolve(ctx, value)
}

// ActiveForMeeting returns the meeting's active token or nil.
func (r *Registry) ActiveForMeeting(ctx context.Context, meetingID uuid.UUID) (*models.Token, error) {
	return r.tokens.ActiveForMeeting(ctx, meetingID)
}

// Toggle flips a token's active flag. Activating a token deactivates the meeting's other tokens,
// so at most one stays active.
func (r *Registry) Toggle(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	t, err := r.tokens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err = r.tokens.SetActive(ctx, id, !t.Active)
	if err != nil {
		return nil, err
	}
	r.logger.Info("token toggled", zap.String("token_id", id.String()), zap.Bool("active", t.Active))
	return t, nil
}

// ListByMeeting returns the meeting's tokens, newest first.
func (r *Registry) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Token, error) {
	if _, err := r.meetings.GetByID(ctx, meetingID); err != nil {
		return nil, err
	}
	return r.tokens.ListByMeeting(ctx, meetingID)
}

// ListOpen returns active tokens whose event has not ended by today. Only event lifetime is
// considered, not the time-of-day window.
func (r *Registry) ListOpen(ctx context.Context, today civil.Date) ([]models.OpenToken, error) {
	active, err := r.tokens.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	meetings := make(map[uuid.UUID]*models.Meeting)
	events := make(map[uuid.UUID]*models.Event)
	open := make([]models.OpenToken, 0, len(active))
	for _, t := range active {
		m, ok := meetings[t.MeetingID]
		if !ok {
			if m, err = r.meetings.GetByID(ctx, t.MeetingID); err != nil {
				return nil, err
			}
			meetings[t.MeetingID] = m
		}
		e, ok := events[m.EventID]
		if !ok {
			if e, err = r.events.GetByID(ctx, m.EventID); err != nil {
				return nil, err
			}
			events[m.EventID] = e
		}
		if e.Ended(today) {
			continue
		}
		open = append(open, models.OpenToken{Token: t, Meeting: *m, Event: *e})
	}
	return open, nil
}
