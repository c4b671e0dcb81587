package postgres

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/compozy/bookstore/engine/core"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	t.Run("Should return nil for nil", func(t *testing.T) {
		assert.NoError(t, classifyError("op", nil))
	})
	t.Run("Should map unique violations to constraint violations", func(t *testing.T) {
		err := classifyError("create book", &pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "book_isbn_key",
		})
		assert.ErrorIs(t, err, core.ErrConstraintViolation)
		assert.Contains(t, err.Error(), "book_isbn_key")
	})
	t.Run("Should map connection exceptions to connection errors", func(t *testing.T) {
		for _, code := range []string{
			pgerrcode.ConnectionFailure,
			pgerrcode.ConnectionDoesNotExist,
			pgerrcode.AdminShutdown,
		} {
			err := classifyError("read", &pgconn.PgError{Code: code})
			assert.ErrorIs(t, err, core.ErrConnection, code)
		}
	})
	t.Run("Should map transport failures to connection errors", func(t *testing.T) {
		assert.ErrorIs(t, classifyError("read", io.ErrUnexpectedEOF), core.ErrConnection)
		assert.ErrorIs(t, classifyError("read", context.DeadlineExceeded), core.ErrConnection)
	})
	t.Run("Should map no rows to not found", func(t *testing.T) {
		assert.ErrorIs(t, classifyError("get", pgx.ErrNoRows), core.ErrNotFound)
	})
	t.Run("Should keep other postgres errors unclassified", func(t *testing.T) {
		err := classifyError("create", &pgconn.PgError{Code: pgerrcode.NotNullViolation})
		assert.NotErrorIs(t, err, core.ErrConstraintViolation)
		assert.NotErrorIs(t, err, core.ErrConnection)
		var pgErr *pgconn.PgError
		assert.True(t, errors.As(err, &pgErr))
	})
	t.Run("Should pass through already classified errors", func(t *testing.T) {
		err := classifyError("commit", &core.TransactionStateError{Op: "commit", State: "committed"})
		assert.ErrorIs(t, err, core.ErrTransactionState)
	})
}
