// Package bookstore is the data-access port consumed by the HTTP layer and
// the CLI.
package bookstore

import (
	"context"

	"github.com/compozy/bookstore/engine/book"
)

// Port is everything the query layer may ask of the store.
type Port interface {
	CreateRecord(ctx context.Context, b *book.Book) error
	UpdateRecord(ctx context.Context, b *book.Book) error
	ReadAll(ctx context.Context, strategy book.ReadStrategy) ([]*book.Book, error)
	GetRecord(ctx context.Context, isbn string) (*book.Book, error)
	RunTransactionalWorkload(ctx context.Context, todoID int64) (*WorkloadReport, error)
	Ping(ctx context.Context) error
}
