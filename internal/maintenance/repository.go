package maintenance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/database"
)

type table string

const (
	tableAttendances table = "attendances"
	tableTeamMembers table = "team_members"
	tableTeams       table = "teams"
	tableTokens      table = "tokens"
	tableMeetings    table = "meetings"
	tableEvents      table = "events"
)

// purgeOrder lists the operational tables children first.
var purgeOrder = []table{
	tableAttendances,
	tableTeamMembers,
	tableTeams,
	tableTokens,
	tableMeetings,
	tableEvents,
}

// Repository wipes operational data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Purger = (*Repository)(nil)

// NewRepository creates a maintenance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PurgeOperational deletes every event, meeting, token, attendance and team, every admin
// except the original one and every attendee that does not back the original admin.
func (r *Repository) PurgeOperational(ctx context.Context) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, t := range purgeOrder {
			if _, err := tx.Exec(ctx, "DELETE FROM "+string(t)); err != nil {
				return fmt.Errorf("purge %s: %w", t, database.Classify(err))
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM admins WHERE NOT is_original`); err != nil {
			return fmt.Errorf("purge admins: %w", database.Classify(err))
		}
		const q = `DELETE FROM attendees
			WHERE id NOT IN (SELECT attendee_id FROM admins WHERE is_original)`
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("purge attendees: %w", database.Classify(err))
		}
		return nil
	})
}
