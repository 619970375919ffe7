package database

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so repository helpers run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DateArg converts a civil date into the value bound to a DATE parameter.
func DateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// DateOf converts a scanned DATE column back into a civil date.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}
