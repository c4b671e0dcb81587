package postgres_test

import (
	"context"
	"io"
	"testing"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectAllBooks = "SELECT title, author, isbn, metadata FROM book ORDER BY isbn"

var bookColumnNames = []string{"title", "author", "isbn", "metadata"}

func sampleBooks() []*book.Book {
	return []*book.Book{
		{
			Title:    "The Name of the Wind",
			Author:   "Patrick Rothfuss",
			ISBN:     "978-0756404741",
			Metadata: &book.Metadata{AvgReview: 9.4, Tags: []string{"fantasy", "epic"}},
		},
		{
			Title:  "Piranesi",
			Author: "Susanna Clarke",
			ISBN:   "978-1635575637",
		},
		{
			Title:    "Dune",
			Author:   "Frank Herbert",
			ISBN:     "978-0441172719",
			Metadata: &book.Metadata{AvgReview: 8.7, Tags: []string{}},
		},
	}
}

func addBookRow(t *testing.T, rows *pgxmock.Rows, b *book.Book) {
	t.Helper()
	metadata, err := book.EncodeMetadata(b.Metadata)
	require.NoError(t, err)
	rows.AddRow(b.Title, b.Author, b.ISBN, metadata)
}

func bookRows(t *testing.T, books ...*book.Book) *pgxmock.Rows {
	t.Helper()
	rows := pgxmock.NewRows(bookColumnNames)
	for _, b := range books {
		addBookRow(t, rows, b)
	}
	return rows
}

// mixedRows returns five rows where the third carries a malformed metadata document.
func mixedRows(t *testing.T) *pgxmock.Rows {
	t.Helper()
	rows := pgxmock.NewRows(bookColumnNames)
	books := sampleBooks()
	addBookRow(t, rows, books[0])
	addBookRow(t, rows, books[1])
	rows.AddRow("Broken", "Nobody", "000-bad", []byte(`{"avg_review":`))
	addBookRow(t, rows, books[2])
	addBookRow(t, rows, &book.Book{Title: "Circe", Author: "Madeline Miller", ISBN: "978-0316556347"})
	return rows
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *postgres.BookRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, postgres.NewBookRepo(mockPool)
}

func TestBookRepo_Create(t *testing.T) {
	t.Run("Should insert book with encoded metadata", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := sampleBooks()[0]
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(context.Background(), b))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should write absent metadata as NULL", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := sampleBooks()[1]
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, nil).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(context.Background(), b))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should surface duplicate ISBN as constraint violation", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := sampleBooks()[0]
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "book_isbn_key"})

		err := repo.Create(context.Background(), b)
		assert.ErrorIs(t, err, core.ErrConstraintViolation)
		assert.Contains(t, err.Error(), "book_isbn_key")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should surface transport failures as connection errors", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := sampleBooks()[1]
		mockPool.ExpectExec("INSERT INTO book (title,author,isbn,metadata) VALUES ($1,$2,$3,$4)").
			WithArgs(b.Title, b.Author, b.ISBN, nil).
			WillReturnError(io.ErrUnexpectedEOF)

		err := repo.Create(context.Background(), b)
		assert.ErrorIs(t, err, core.ErrConnection)
	})

	t.Run("Should reject a nil book", func(t *testing.T) {
		_, repo := newMockRepo(t)
		assert.ErrorIs(t, repo.Create(context.Background(), nil), core.ErrInvalidInput)
	})
}

func TestBookRepo_Update(t *testing.T) {
	const updateSQL = "UPDATE book SET title = $1, author = $2, metadata = $3 WHERE isbn = $4"

	t.Run("Should leave the same state when applied twice", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := sampleBooks()[0]
		for range 2 {
			mockPool.ExpectExec(updateSQL).
				WithArgs(b.Title, b.Author, pgxmock.AnyArg(), b.ISBN).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		}
		mockPool.ExpectQuery("SELECT title, author, isbn, metadata FROM book WHERE isbn = $1").
			WithArgs(b.ISBN).
			WillReturnRows(bookRows(t, b))

		ctx := context.Background()
		require.NoError(t, repo.Update(ctx, b))
		require.NoError(t, repo.Update(ctx, b))
		got, err := repo.GetByISBN(ctx, b.ISBN)
		require.NoError(t, err)
		assert.True(t, b.Equal(got))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should not fail when no row matches", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		b := &book.Book{Title: "Ghost", Author: "Nobody", ISBN: "missing"}
		mockPool.ExpectExec(updateSQL).
			WithArgs(b.Title, b.Author, nil, b.ISBN).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.NoError(t, repo.Update(context.Background(), b))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestBookRepo_GetByISBN(t *testing.T) {
	const getSQL = "SELECT title, author, isbn, metadata FROM book WHERE isbn = $1"

	t.Run("Should return not found for a missing ISBN", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(getSQL).
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows(bookColumnNames))

		got, err := repo.GetByISBN(context.Background(), "missing")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Should fail with decode error on malformed metadata", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(getSQL).
			WithArgs("000-bad").
			WillReturnRows(pgxmock.NewRows(bookColumnNames).
				AddRow("Broken", "Nobody", "000-bad", []byte(`[1,2]`)))

		got, err := repo.GetByISBN(context.Background(), "000-bad")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, core.ErrDecode)
	})
}

func TestBookRepo_ReadAll(t *testing.T) {
	t.Run("Should return equal results for every strategy", func(t *testing.T) {
		expected := sampleBooks()
		for _, strategy := range book.ReadStrategies() {
			t.Run(strategy.String(), func(t *testing.T) {
				mockPool, repo := newMockRepo(t)
				mockPool.ExpectQuery(selectAllBooks).WillReturnRows(bookRows(t, expected...))

				got, err := repo.ReadAll(context.Background(), strategy)
				require.NoError(t, err)
				assert.ElementsMatch(t, expected, got)
				assert.NoError(t, mockPool.ExpectationsWereMet())
			})
		}
	})

	t.Run("Should return an empty result for an empty table", func(t *testing.T) {
		for _, strategy := range book.ReadStrategies() {
			mockPool, repo := newMockRepo(t)
			mockPool.ExpectQuery(selectAllBooks).WillReturnRows(pgxmock.NewRows(bookColumnNames))

			got, err := repo.ReadAll(context.Background(), strategy)
			require.NoError(t, err, strategy.String())
			assert.Empty(t, got, strategy.String())
		}
	})

	t.Run("Should skip a malformed row when streaming", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(mixedRows(t))

		got, err := repo.ReadAll(context.Background(), book.StrategyStreamed)
		require.NoError(t, err)
		require.Len(t, got, 4)
		for _, b := range got {
			assert.NotEqual(t, "000-bad", b.ISBN)
		}
	})

	t.Run("Should fail buffered reads on a malformed row", func(t *testing.T) {
		for _, strategy := range []book.ReadStrategy{book.StrategyManual, book.StrategyDeclarative} {
			mockPool, repo := newMockRepo(t)
			mockPool.ExpectQuery(selectAllBooks).WillReturnRows(mixedRows(t))

			got, err := repo.ReadAll(context.Background(), strategy)
			assert.Nil(t, got, strategy.String())
			assert.ErrorIs(t, err, core.ErrDecode, strategy.String())
		}
	})

	t.Run("Should fail buffered reads when a required column is missing", func(t *testing.T) {
		for _, strategy := range []book.ReadStrategy{book.StrategyManual, book.StrategyDeclarative} {
			mockPool, repo := newMockRepo(t)
			mockPool.ExpectQuery(selectAllBooks).
				WillReturnRows(pgxmock.NewRows([]string{"title", "isbn"}).AddRow("t", "1"))

			_, err := repo.ReadAll(context.Background(), strategy)
			assert.ErrorIs(t, err, core.ErrDecode, strategy.String())
		}
	})

	t.Run("Should reject an unknown strategy", func(t *testing.T) {
		_, repo := newMockRepo(t)
		_, err := repo.ReadAll(context.Background(), book.ReadStrategy("v9"))
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("Should classify query failures", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).WillReturnError(io.EOF)

		_, err := repo.ReadAll(context.Background(), book.StrategyManual)
		assert.ErrorIs(t, err, core.ErrConnection)
	})
}

func TestBookRepo_Stream(t *testing.T) {
	t.Run("Should yield books lazily and count skipped rows", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(mixedRows(t))

		stream, err := repo.Stream(context.Background())
		require.NoError(t, err)
		var isbns []string
		for stream.Next() {
			isbns = append(isbns, stream.Book().ISBN)
		}
		require.NoError(t, stream.Err())
		assert.Len(t, isbns, 4)
		assert.Equal(t, 1, stream.Skipped())
		assert.False(t, stream.Next())
		assert.Nil(t, stream.Book())
	})

	t.Run("Should not restart after being drained", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(bookRows(t, sampleBooks()...))

		stream, err := repo.Stream(context.Background())
		require.NoError(t, err)
		first := 0
		for range stream.All() {
			first++
		}
		second := 0
		for range stream.All() {
			second++
		}
		assert.Equal(t, 3, first)
		assert.Zero(t, second)
	})

	t.Run("Should stop early and close when iteration breaks", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(bookRows(t, sampleBooks()...))

		stream, err := repo.Stream(context.Background())
		require.NoError(t, err)
		for range stream.All() {
			break
		}
		assert.False(t, stream.Next())
		assert.NoError(t, stream.Err())
	})

	t.Run("Should report transport failures that end the stream", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		rows := bookRows(t, sampleBooks()...).RowError(1, io.ErrUnexpectedEOF)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(rows)

		got, err := repo.ReadAll(context.Background(), book.StrategyStreamed)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, core.ErrConnection)
	})

	t.Run("Should end the stream instead of skipping a failed row fetch", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		rows := bookRows(t, sampleBooks()...).RowError(1, io.ErrUnexpectedEOF)
		mockPool.ExpectQuery(selectAllBooks).WillReturnRows(rows)

		stream, err := repo.Stream(context.Background())
		require.NoError(t, err)
		var isbns []string
		for stream.Next() {
			isbns = append(isbns, stream.Book().ISBN)
		}
		assert.Equal(t, []string{sampleBooks()[0].ISBN}, isbns)
		assert.Zero(t, stream.Skipped())
		assert.ErrorIs(t, stream.Err(), core.ErrConnection)
		assert.False(t, stream.Next())
	})

	t.Run("Should fail when a required column is missing", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		mockPool.ExpectQuery(selectAllBooks).
			WillReturnRows(pgxmock.NewRows([]string{"title", "isbn"}).AddRow("t", "1"))

		got, err := repo.ReadAll(context.Background(), book.StrategyStreamed)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, core.ErrDecode)
	})
}
