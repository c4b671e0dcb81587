package bookstore

import (
	"context"
	"fmt"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/compozy/bookstore/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pingQuery  = "SELECT 1 + 1"
	tracerName = "bookstore.service"
)

// Service implements Port over the postgres repositories.
type Service struct {
	db     postgres.DB
	books  *postgres.BookRepo
	todos  *postgres.TodoRepo
	coord  *postgres.Coordinator
	tracer trace.Tracer
}

var _ Port = (*Service)(nil)

func NewService(db postgres.DB, opts ...postgres.CoordinatorOption) *Service {
	return &Service{
		db:     db,
		books:  postgres.NewBookRepo(db),
		todos:  postgres.NewTodoRepo(db),
		coord:  postgres.NewCoordinator(db, opts...),
		tracer: otel.Tracer(tracerName),
	}
}

func (s *Service) CreateRecord(ctx context.Context, b *book.Book) (err error) {
	if err := validate(b); err != nil {
		return err
	}
	ctx, span := s.startSpan(ctx, "CreateRecord", attribute.String("book.isbn", b.ISBN))
	defer func() { endSpan(span, err) }()
	if err := s.books.Create(ctx, b); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Book created", "isbn", b.ISBN)
	return nil
}

// UpdateRecord rewrites the book keyed by b.ISBN. It does not check that the
// book exists.
func (s *Service) UpdateRecord(ctx context.Context, b *book.Book) (err error) {
	if err := validate(b); err != nil {
		return err
	}
	ctx, span := s.startSpan(ctx, "UpdateRecord", attribute.String("book.isbn", b.ISBN))
	defer func() { endSpan(span, err) }()
	return s.books.Update(ctx, b)
}

func (s *Service) ReadAll(ctx context.Context, strategy book.ReadStrategy) (books []*book.Book, err error) {
	ctx, span := s.startSpan(ctx, "ReadAll", attribute.String("book.read_strategy", strategy.String()))
	defer func() {
		span.SetAttributes(attribute.Int("book.count", len(books)))
		endSpan(span, err)
	}()
	return s.books.ReadAll(ctx, strategy)
}

func (s *Service) GetRecord(ctx context.Context, isbn string) (*book.Book, error) {
	if isbn == "" {
		return nil, fmt.Errorf("%w: isbn is required", core.ErrInvalidInput)
	}
	return s.books.GetByISBN(ctx, isbn)
}

// Ping runs a trivial query to prove the store answers.
func (s *Service) Ping(ctx context.Context) error {
	var sum int
	if err := s.db.QueryRow(ctx, pingQuery).Scan(&sum); err != nil {
		return core.NewConnectionError("ping", err)
	}
	if sum != 2 {
		return fmt.Errorf("ping: unexpected result %d", sum)
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, tracerName+"."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validate(b *book.Book) error {
	if b == nil {
		return fmt.Errorf("%w: book is required", core.ErrInvalidInput)
	}
	return b.Validate()
}
