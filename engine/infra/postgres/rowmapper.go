package postgres

import (
	"fmt"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	bookColumns         = []string{"title", "author", "isbn", book.MetadataColumn}
	requiredBookColumns = []string{"title", "author", "isbn"}
)

// bookRow is the wire shape of a book row. Metadata stays raw so a malformed
// document fails in toDomain, after the driver finished with the row.
type bookRow struct {
	Title    string `db:"title"`
	Author   string `db:"author"`
	ISBN     string `db:"isbn"`
	Metadata []byte `db:"metadata"`
}

// toDomain is the mapping step shared by every read strategy.
func (r *bookRow) toDomain() (*book.Book, error) {
	metadata, err := book.DecodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &book.Book{
		Title:    r.Title,
		Author:   r.Author,
		ISBN:     r.ISBN,
		Metadata: metadata,
	}, nil
}

// checkBookColumns fails when the result set lacks a required column.
// A missing metadata column decodes as absent metadata.
func checkBookColumns(fields []pgconn.FieldDescription) error {
	present := make(map[string]struct{}, len(fields))
	for i := range fields {
		present[fields[i].Name] = struct{}{}
	}
	for _, col := range requiredBookColumns {
		if _, ok := present[col]; !ok {
			return core.NewDecodeError(col, fmt.Errorf("column missing from result set"))
		}
	}
	return nil
}

// scanBookColumns extracts the current row column by column, by name.
// Unknown columns are read and discarded.
func scanBookColumns(row pgx.CollectableRow) (*bookRow, error) {
	fields := row.FieldDescriptions()
	if err := checkBookColumns(fields); err != nil {
		return nil, err
	}
	var r bookRow
	dest := make([]any, len(fields))
	for i := range fields {
		switch fields[i].Name {
		case "title":
			dest[i] = &r.Title
		case "author":
			dest[i] = &r.Author
		case "isbn":
			dest[i] = &r.ISBN
		case book.MetadataColumn:
			dest[i] = &r.Metadata
		default:
			dest[i] = new(any)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return nil, core.NewDecodeError("", err)
	}
	return &r, nil
}

// decodeBookColumns is the manual RowMapper: by-name extraction followed by
// the shared metadata decode.
func decodeBookColumns(row pgx.CollectableRow) (*book.Book, error) {
	r, err := scanBookColumns(row)
	if err != nil {
		return nil, err
	}
	return r.toDomain()
}
