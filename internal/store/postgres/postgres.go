// Package postgres assembles the pgx repositories of every feature package into a store.Store.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/attendance"
	"github.com/presenca/backend/internal/attendees"
	"github.com/presenca/backend/internal/auth"
	"github.com/presenca/backend/internal/events"
	"github.com/presenca/backend/internal/maintenance"
	"github.com/presenca/backend/internal/regions"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/teams"
	"github.com/presenca/backend/internal/tokens"
)

// New returns a store backed by pool.
func New(pool *pgxpool.Pool) store.Store {
	return store.Store{
		Regions:     regions.NewRepository(pool),
		Attendees:   attendees.NewRepository(pool),
		Events:      events.NewRepository(pool),
		Meetings:    events.NewMeetingRepository(pool),
		Tokens:      tokens.NewRepository(pool),
		Attendances: attendance.NewRepository(pool),
		Teams:       teams.NewRepository(pool),
		Admins:      auth.NewRepository(pool),
		Purger:      maintenance.NewRepository(pool),
	}
}
