package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

const bookTable = "book"

// BookRepo implements book.Repository on top of a Querier. Bound to the pool
// it runs unscoped statements; rebound with With it runs inside a Scope.
type BookRepo struct {
	db      Querier
	readers map[book.ReadStrategy]bookReader
}

var _ book.Repository = (*BookRepo)(nil)

func NewBookRepo(db Querier) *BookRepo {
	return &BookRepo{db: db, readers: defaultReaders()}
}

// With returns a copy of the repository bound to q.
func (r *BookRepo) With(q Querier) *BookRepo {
	return &BookRepo{db: q, readers: r.readers}
}

func selectBookBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(bookColumns...).
		From(bookTable).
		PlaceholderFormat(squirrel.Dollar)
}

// nullableJSON keeps absent metadata as SQL NULL rather than the JSON literal.
func nullableJSON(doc []byte) any {
	if doc == nil {
		return nil
	}
	return doc
}

func (r *BookRepo) Create(ctx context.Context, b *book.Book) error {
	if b == nil {
		return fmt.Errorf("create book: %w: book is required", core.ErrInvalidInput)
	}
	metadata, err := book.EncodeMetadata(b.Metadata)
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	query, args, err := squirrel.
		Insert(bookTable).
		Columns(bookColumns...).
		Values(b.Title, b.Author, b.ISBN, nullableJSON(metadata)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create book query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return classifyError("create book", err)
	}
	return nil
}

// Update rewrites the row matching b.ISBN. Matching no row is not an error.
func (r *BookRepo) Update(ctx context.Context, b *book.Book) error {
	if b == nil {
		return fmt.Errorf("update book: %w: book is required", core.ErrInvalidInput)
	}
	metadata, err := book.EncodeMetadata(b.Metadata)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	query, args, err := squirrel.
		Update(bookTable).
		Set("title", b.Title).
		Set("author", b.Author).
		Set(book.MetadataColumn, nullableJSON(metadata)).
		Where(squirrel.Eq{"isbn": b.ISBN}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update book query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return classifyError("update book", err)
	}
	if tag.RowsAffected() == 0 {
		logger.FromContext(ctx).Debug("Book update matched no rows", "isbn", b.ISBN)
	}
	return nil
}

func (r *BookRepo) GetByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	query, args, err := selectBookBuilder().
		Where(squirrel.Eq{"isbn": isbn}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get book query: %w", err)
	}
	var row bookRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("book %q: %w", isbn, core.ErrNotFound)
		}
		var scanErr pgx.ScanArgError
		if errors.As(err, &scanErr) {
			return nil, core.NewDecodeError(scanErr.FieldName, err)
		}
		return nil, classifyError("get book", err)
	}
	return row.toDomain()
}

// ReadAll returns every book ordered by ISBN using the given strategy.
func (r *BookRepo) ReadAll(ctx context.Context, strategy book.ReadStrategy) (books []*book.Book, err error) {
	reader, ok := r.readers[strategy]
	if !ok {
		return nil, fmt.Errorf("read books: %w: unknown strategy %q", core.ErrInvalidInput, strategy)
	}
	defer func(started time.Time) { recordRead(ctx, strategy, started, err) }(time.Now())
	rows, err := r.queryAll(ctx)
	if err != nil {
		return nil, err
	}
	books, err = reader.read(ctx, rows)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("Books read", "strategy", strategy.String(), "count", len(books))
	return books, nil
}

// Stream opens a lazy read over every book ordered by ISBN. The caller must
// drain or close the returned stream.
func (r *BookRepo) Stream(ctx context.Context) (*BookStream, error) {
	rows, err := r.queryAll(ctx)
	if err != nil {
		return nil, err
	}
	return newBookStream(ctx, rows), nil
}

func (r *BookRepo) queryAll(ctx context.Context) (pgx.Rows, error) {
	query, args, err := selectBookBuilder().OrderBy("isbn").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read books query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError("read books", err)
	}
	return rows, nil
}
