// Package book defines the Book record, its semi-structured metadata and the
// repository contract the data-access layer implements for it.
package book

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/compozy/bookstore/engine/core"
	"github.com/go-playground/validator/v10"
)

// Book is a catalogue entry. ISBN is the unique business key.
type Book struct {
	Title    string    `json:"title"              validate:"required"`
	Author   string    `json:"author"             validate:"required"`
	ISBN     string    `json:"isbn"               validate:"required,max=32"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata is stored as a nullable JSON document next to the book row.
type Metadata struct {
	AvgReview float32  `json:"avg_review"`
	Tags      []string `json:"tags"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks the required fields of b.
func (b *Book) Validate() error {
	if b == nil {
		return fmt.Errorf("book is required: %w", core.ErrInvalidInput)
	}
	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

// Equal reports whether two books carry the same field values.
func (b *Book) Equal(other *Book) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Title == other.Title &&
		b.Author == other.Author &&
		b.ISBN == other.ISBN &&
		b.Metadata.Equal(other.Metadata)
}

// Equal compares metadata values; tag order is significant.
func (m *Metadata) Equal(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.AvgReview == other.AvgReview && slices.Equal(m.Tags, other.Tags)
}

// Repository is the record repository contract for books.
// Update matches by ISBN and does not report a zero-row match.
type Repository interface {
	Create(ctx context.Context, b *Book) error
	Update(ctx context.Context, b *Book) error
	GetByISBN(ctx context.Context, isbn string) (*Book, error)
	ReadAll(ctx context.Context, strategy ReadStrategy) ([]*Book, error)
}
