package postgres

import (
	"context"
	"errors"
	"iter"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// BookStream decodes books one row at a time as they arrive from the store.
// A row that fails to decode is logged and skipped; any other scan failure
// ends the stream and is reported by Err. A stream is consumed once; after
// it is drained or closed Next always reports false.
//
// The stream holds its connection until it is drained or closed.
type BookStream struct {
	ctx     context.Context
	rows    pgx.Rows
	scanner *pgxscan.RowScanner
	current *book.Book
	index   int
	skipped int
	err     error
	done    bool
}

func newBookStream(ctx context.Context, rows pgx.Rows) *BookStream {
	return &BookStream{
		ctx:     ctx,
		rows:    rows,
		scanner: pgxscan.NewRowScanner(rows),
	}
}

// Next advances to the next decodable book.
func (s *BookStream) Next() bool {
	if s.done {
		return false
	}
	if s.index == 0 {
		if err := checkBookColumns(s.rows.FieldDescriptions()); err != nil {
			s.fail(err)
			return false
		}
	}
	for s.rows.Next() {
		s.index++
		var r bookRow
		if err := s.scanner.Scan(&r); err != nil {
			if !isRowDecodeError(err) {
				s.fail(classifyError("stream books", err))
				return false
			}
			s.skip(err, "")
			continue
		}
		b, err := r.toDomain()
		if err != nil {
			s.skip(err, r.ISBN)
			continue
		}
		s.current = b
		return true
	}
	s.finish()
	return false
}

// Book returns the book decoded by the last successful Next.
func (s *BookStream) Book() *book.Book { return s.current }

// Skipped reports how many rows were dropped because they failed to decode.
func (s *BookStream) Skipped() int { return s.skipped }

// Err returns the error that ended the stream early, if any. Skipped rows
// are not errors.
func (s *BookStream) Err() error { return s.err }

// Close releases the result set. It is safe to call more than once.
func (s *BookStream) Close() {
	if s.done {
		return
	}
	s.rows.Close()
	s.finish()
}

// All yields the remaining books and closes the stream when iteration stops.
func (s *BookStream) All() iter.Seq[*book.Book] {
	return func(yield func(*book.Book) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.current) {
				return
			}
		}
	}
}

func (s *BookStream) skip(err error, isbn string) {
	s.skipped++
	recordSkippedRow(s.ctx)
	logger.FromContext(s.ctx).Warn("Skipping book row that failed to decode",
		"row", s.index,
		"isbn", isbn,
		"error", err,
	)
}

// isRowDecodeError reports whether a scan failure concerns the row's values
// rather than the result set itself.
func isRowDecodeError(err error) bool {
	var scanErr pgx.ScanArgError
	return errors.As(err, &scanErr) || errors.Is(err, core.ErrDecode)
}

// fail ends the stream with err and releases the result set.
func (s *BookStream) fail(err error) {
	s.rows.Close()
	s.done = true
	s.current = nil
	s.err = err
}

func (s *BookStream) finish() {
	s.done = true
	s.current = nil
	rowsErr := s.rows.Err()
	if rowsErr == nil {
		return
	}
	var scanErr pgx.ScanArgError
	if errors.As(rowsErr, &scanErr) {
		// pgx closes the result set on a driver-level scan failure, so the
		// rows after the one already skipped are lost.
		s.err = core.NewDecodeError(scanErr.FieldName, rowsErr)
		return
	}
	s.err = classifyError("stream books", rowsErr)
}
