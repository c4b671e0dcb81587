package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier issues statements. The pool, pgx.Tx, pgxmock and *Scope all
// satisfy it, so a repository bound to a Querier runs either against the
// pool or inside a transaction scope.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the minimal pool interface the coordinator depends on (pgxpool or pgxmock).
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}
