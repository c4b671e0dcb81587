package postgres

import (
	"testing"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(names ...string) []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(names))
	for i, name := range names {
		out[i] = pgconn.FieldDescription{Name: name}
	}
	return out
}

func TestCheckBookColumns(t *testing.T) {
	t.Run("Should accept the full column set in any order", func(t *testing.T) {
		assert.NoError(t, checkBookColumns(fields("metadata", "isbn", "author", "title")))
	})

	t.Run("Should accept a result set without the metadata column", func(t *testing.T) {
		assert.NoError(t, checkBookColumns(fields("title", "author", "isbn")))
	})

	t.Run("Should report the missing required column", func(t *testing.T) {
		err := checkBookColumns(fields("title", "isbn"))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrDecode)
		var decodeErr *core.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "author", decodeErr.Column)
	})
}

func TestBookRow_ToDomain(t *testing.T) {
	t.Run("Should map columns and decode metadata", func(t *testing.T) {
		r := &bookRow{
			Title:    "The Name of the Wind",
			Author:   "Patrick Rothfuss",
			ISBN:     "978-0756404741",
			Metadata: []byte(`{"avg_review":9.4,"tags":["fantasy","epic"]}`),
		}
		b, err := r.toDomain()
		require.NoError(t, err)
		assert.Equal(t, "The Name of the Wind", b.Title)
		assert.Equal(t, "Patrick Rothfuss", b.Author)
		assert.Equal(t, "978-0756404741", b.ISBN)
		require.NotNil(t, b.Metadata)
		assert.Equal(t, &book.Metadata{AvgReview: 9.4, Tags: []string{"fantasy", "epic"}}, b.Metadata)
	})

	t.Run("Should map NULL metadata to nil", func(t *testing.T) {
		b, err := (&bookRow{Title: "t", Author: "a", ISBN: "1"}).toDomain()
		require.NoError(t, err)
		assert.Nil(t, b.Metadata)
	})

	t.Run("Should not downgrade malformed metadata to nil", func(t *testing.T) {
		b, err := (&bookRow{ISBN: "1", Metadata: []byte(`{"avg_review":"high"}`)}).toDomain()
		assert.Nil(t, b)
		assert.ErrorIs(t, err, core.ErrDecode)
	})
}

func TestNullableJSON(t *testing.T) {
	t.Run("Should pass nil for absent documents", func(t *testing.T) {
		assert.Nil(t, nullableJSON(nil))
	})

	t.Run("Should pass documents through", func(t *testing.T) {
		assert.Equal(t, []byte(`{}`), nullableJSON([]byte(`{}`)))
	})
}
