// Package admission decides whether a check-in is currently permitted.
//
// The decision is a pure function of the effective token, its meeting and event, and the
// current instant. It is evaluated on every attempt, both when the form is rendered and when
// it is submitted, and never cached.
package admission

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/presenca/backend/internal/models"
)

// The evening catch-up window, inclusive at both ends, to the second.
var (
	WindowStart = civil.Time{Hour: 18}
	WindowEnd   = civil.Time{Hour: 23, Minute: 30}
)

// Reason explains a Decision.
type Reason string

const (
	ReasonOpen          Reason = "open"
	ReasonTokenInactive Reason = "token_inactive"
	ReasonEventEnded    Reason = "event_ended"
	ReasonOutsideWindow Reason = "outside_window"
)

// Target is what a scan is addressed to. Token is the effective token, after redirecting an
// inactive token to its meeting's active one.
type Target struct {
	Token   *models.Token
	Meeting *models.Meeting
	Event   *models.Event
}

// Decision is the gate's verdict.
type Decision struct {
	Open   bool   `json:"open"`
	Reason Reason `json:"reason"`
}

// Gate evaluates admission in the events' local civil timezone.
type Gate struct {
	Location *time.Location
}

// NewGate creates a gate for loc; nil means UTC.
func NewGate(loc *time.Location) Gate {
	if loc == nil {
		loc = time.UTC
	}
	return Gate{Location: loc}
}

func (g Gate) loc() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

// Local converts now to the gate's timezone.
func (g Gate) Local(now time.Time) time.Time {
	return now.In(g.loc())
}

// Today is the local calendar date at now.
func (g Gate) Today(now time.Time) civil.Date {
	return civil.DateOf(g.Local(now))
}

// Decide applies the rules in order: inactive token, ended event, then the time-of-day
// window for meetings not dated today.
func (g Gate) Decide(t Target, now time.Time) Decision {
	local := g.Local(now)
	today := civil.DateOf(local)
	switch {
	case !t.Token.Active:
		return Decision{Reason: ReasonTokenInactive}
	case t.Event.Ended(today):
		return Decision{Reason: ReasonEventEnded}
	case t.Meeting.Date != today && !InWindow(local):
		return Decision{Reason: ReasonOutsideWindow}
	}
	return Decision{Open: true, Reason: ReasonOpen}
}

// IsOpen reports whether Decide would admit the scan.
func (g Gate) IsOpen(t Target, now time.Time) bool {
	return g.Decide(t, now).Open
}

// InWindow reports whether local's time of day lies in [WindowStart, WindowEnd].
// Any fraction of a second past WindowEnd is outside.
func InWindow(local time.Time) bool {
	secs := secondsOfDay(local.Hour(), local.Minute(), local.Second())
	start := secondsOfDay(WindowStart.Hour, WindowStart.Minute, WindowStart.Second)
	end := secondsOfDay(WindowEnd.Hour, WindowEnd.Minute, WindowEnd.Second)
	if secs < start || secs > end {
		return false
	}
	return secs < end || local.Nanosecond() == 0
}

func secondsOfDay(h, m, s int) int {
	return h*3600 + m*60 + s
}
