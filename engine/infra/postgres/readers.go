package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// bookReader is one read strategy. Every reader consumes and closes rows.
type bookReader interface {
	read(ctx context.Context, rows pgx.Rows) ([]*book.Book, error)
}

func defaultReaders() map[book.ReadStrategy]bookReader {
	return map[book.ReadStrategy]bookReader{
		book.StrategyManual:      manualReader{},
		book.StrategyDeclarative: declarativeReader{},
		book.StrategyStreamed:    streamedReader{},
	}
}

// manualReader buffers the result and maps each row column by column.
// The first row that fails to decode aborts the read.
type manualReader struct{}

func (manualReader) read(_ context.Context, rows pgx.Rows) ([]*book.Book, error) {
	books, err := pgx.CollectRows(rows, decodeBookColumns)
	if err != nil {
		return nil, bufferedReadError(err, rows)
	}
	return books, nil
}

// declarativeReader maps whole rows onto bookRow with pgxscan.
type declarativeReader struct{}

func (declarativeReader) read(_ context.Context, rows pgx.Rows) ([]*book.Book, error) {
	defer rows.Close()
	if err := checkBookColumns(rows.FieldDescriptions()); err != nil {
		return nil, err
	}
	var dbRows []*bookRow
	if err := pgxscan.ScanAll(&dbRows, rows); err != nil {
		return nil, bufferedReadError(err, rows)
	}
	books := make([]*book.Book, 0, len(dbRows))
	for _, r := range dbRows {
		b, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("book %q: %w", r.ISBN, err)
		}
		books = append(books, b)
	}
	return books, nil
}

// streamedReader drains a BookStream, so rows that fail to decode are
// logged and skipped instead of failing the read.
type streamedReader struct{}

func (streamedReader) read(ctx context.Context, rows pgx.Rows) ([]*book.Book, error) {
	stream := newBookStream(ctx, rows)
	books := make([]*book.Book, 0)
	for b := range stream.All() {
		books = append(books, b)
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// bufferedReadError separates transport failures reported by the result set
// from mapping failures, which are decode errors.
func bufferedReadError(err error, rows pgx.Rows) error {
	if errors.Is(err, core.ErrDecode) {
		return err
	}
	var scanErr pgx.ScanArgError
	if errors.As(err, &scanErr) {
		return core.NewDecodeError(scanErr.FieldName, err)
	}
	if rowsErr := rows.Err(); rowsErr != nil && !errors.As(rowsErr, &scanErr) {
		return classifyError("read books", rowsErr)
	}
	return core.NewDecodeError("", err)
}
