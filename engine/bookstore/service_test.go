package bookstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	deleteTodoSQL = "DELETE FROM todos WHERE id = $1"
	insertTodoSQL = "INSERT INTO todos (id,description) VALUES ($1,$2)"
	getTodoSQL    = "SELECT id, description FROM todos WHERE id = $1"
)

func newService(t *testing.T) (pgxmock.PgxPoolIface, *bookstore.Service) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, bookstore.NewService(mockPool)
}

func todoRows(id int64, description string, present bool) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "description"})
	if present {
		rows.AddRow(id, description)
	}
	return rows
}

// expectPhase scripts one workload phase: insert, in-scope read, outside
// read, terminal statement, outside read.
func expectPhase(mockPool pgxmock.PgxPoolIface, id int64, phase string, committed, visibleAfter bool) {
	description := "workload " + phase
	mockPool.ExpectBegin()
	mockPool.ExpectExec(insertTodoSQL).
		WithArgs(id, description).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectQuery(getTodoSQL).WithArgs(id).WillReturnRows(todoRows(id, description, true))
	mockPool.ExpectQuery(getTodoSQL).WithArgs(id).WillReturnRows(todoRows(id, description, false))
	if committed {
		mockPool.ExpectCommit()
	} else {
		mockPool.ExpectRollback()
	}
	mockPool.ExpectQuery(getTodoSQL).WithArgs(id).WillReturnRows(todoRows(id, description, visibleAfter))
}

func TestService_RunTransactionalWorkload(t *testing.T) {
	t.Run("Should observe rollback and commit visibility in every phase", func(t *testing.T) {
		mockPool, svc := newService(t)
		mockPool.ExpectExec(deleteTodoSQL).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		expectPhase(mockPool, 1, bookstore.PhaseExplicitRollback, false, false)
		expectPhase(mockPool, 1, bookstore.PhaseImplicitRollback, false, false)
		expectPhase(mockPool, 1, bookstore.PhaseCommit, true, true)

		report, err := svc.RunTransactionalWorkload(context.Background(), 1)
		require.NoError(t, err)
		require.True(t, report.OK())
		require.Len(t, report.Phases, 3)
		assert.Equal(t, postgres.ScopeRolledBack, report.Phases[0].FinalState)
		assert.Equal(t, postgres.ScopeRolledBack, report.Phases[1].FinalState)
		assert.Equal(t, postgres.ScopeCommitted, report.Phases[2].FinalState)
		for _, p := range report.Phases {
			assert.True(t, p.VisibleInScope, p.Name)
			assert.False(t, p.VisibleOutsideBefore, p.Name)
			assert.NotEmpty(t, p.ScopeID, p.Name)
		}
		assert.False(t, report.Phases[0].VisibleOutsideAfter)
		assert.False(t, report.Phases[1].VisibleOutsideAfter)
		assert.True(t, report.Phases[2].VisibleOutsideAfter)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a committed row that stays invisible", func(t *testing.T) {
		mockPool, svc := newService(t)
		mockPool.ExpectExec(deleteTodoSQL).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
		expectPhase(mockPool, 1, bookstore.PhaseExplicitRollback, false, false)
		expectPhase(mockPool, 1, bookstore.PhaseImplicitRollback, false, false)
		expectPhase(mockPool, 1, bookstore.PhaseCommit, true, false)

		report, err := svc.RunTransactionalWorkload(context.Background(), 1)
		assert.ErrorIs(t, err, bookstore.ErrIsolationViolated)
		require.NotNil(t, report)
		assert.False(t, report.OK())
		assert.Contains(t, err.Error(), "commit: committed row not visible")
	})

	t.Run("Should stop when a scope cannot be opened", func(t *testing.T) {
		mockPool, svc := newService(t)
		mockPool.ExpectExec(deleteTodoSQL).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectBegin().WillReturnError(errors.New("too many clients"))

		report, err := svc.RunTransactionalWorkload(context.Background(), 3)
		assert.ErrorIs(t, err, core.ErrConnection)
		require.NotNil(t, report)
		assert.Empty(t, report.Phases)
	})
}

func TestService_Records(t *testing.T) {
	t.Run("Should reject an invalid book before touching the store", func(t *testing.T) {
		mockPool, svc := newService(t)
		err := svc.CreateRecord(context.Background(), &book.Book{Title: "No ISBN", Author: "Anon"})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
		assert.ErrorIs(t, svc.UpdateRecord(context.Background(), nil), core.ErrInvalidInput)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should create a valid book", func(t *testing.T) {
		mockPool, svc := newService(t)
		b := &book.Book{Title: "Piranesi", Author: "Susanna Clarke", ISBN: "978-1635575637"}
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, nil).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, svc.CreateRecord(context.Background(), b))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should require an ISBN to get a record", func(t *testing.T) {
		_, svc := newService(t)
		_, err := svc.GetRecord(context.Background(), "")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestService_Ping(t *testing.T) {
	t.Run("Should succeed when the store answers", func(t *testing.T) {
		mockPool, svc := newService(t)
		mockPool.ExpectQuery("SELECT 1 + 1").WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(2))

		require.NoError(t, svc.Ping(context.Background()))
	})

	t.Run("Should surface failures as connection errors", func(t *testing.T) {
		mockPool, svc := newService(t)
		mockPool.ExpectQuery("SELECT 1 + 1").WillReturnError(errors.New("connection refused"))

		assert.ErrorIs(t, svc.Ping(context.Background()), core.ErrConnection)
	})
}

func TestService_Tracing(t *testing.T) {
	t.Run("Should record a failed span for a duplicate book", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(provider)
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
		mockPool, svc := newService(t)
		b := &book.Book{Title: "Piranesi", Author: "Susanna Clarke", ISBN: "978-1635575637"}
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, nil).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "book_isbn_key"})

		err := svc.CreateRecord(context.Background(), b)
		require.ErrorIs(t, err, core.ErrConstraintViolation)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "bookstore.service.CreateRecord", spans[0].Name)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.NotEmpty(t, spans[0].Events)
	})
}
