package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/compozy/bookstore/engine/core"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// classifyError maps driver errors onto the core taxonomy. op names the
// failing operation and prefixes the message.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		pgErr      *pgconn.PgError
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	switch {
	case errors.Is(err, core.ErrTransactionState),
		errors.Is(err, core.ErrDecode),
		errors.Is(err, core.ErrConnection):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case errors.As(err, &pgErr):
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, core.ErrConstraintViolation, pgErr.ConstraintName)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CrashShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow:
			return core.NewConnectionError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	case errors.As(err, &connectErr),
		pgconn.Timeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr):
		return core.NewConnectionError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
