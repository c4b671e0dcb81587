package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/todo"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

const todoTable = "todos"

// TodoRepo implements todo.Repository on top of a Querier.
type TodoRepo struct {
	db Querier
}

var _ todo.Repository = (*TodoRepo)(nil)

func NewTodoRepo(db Querier) *TodoRepo {
	return &TodoRepo{db: db}
}

// With returns a copy of the repository bound to q.
func (r *TodoRepo) With(q Querier) *TodoRepo {
	return &TodoRepo{db: q}
}

func (r *TodoRepo) Insert(ctx context.Context, t *todo.Todo) error {
	if t == nil {
		return fmt.Errorf("insert todo: %w: todo is required", core.ErrInvalidInput)
	}
	query, args, err := squirrel.
		Insert(todoTable).
		Columns("id", "description").
		Values(t.ID, t.Description).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert todo query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return classifyError("insert todo", err)
	}
	return nil
}

func (r *TodoRepo) Get(ctx context.Context, id int64) (*todo.Todo, error) {
	query, args, err := squirrel.
		Select("id", "description").
		From(todoTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get todo query: %w", err)
	}
	var t todo.Todo
	if err := pgxscan.Get(ctx, r.db, &t, query, args...); err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
		}
		return nil, classifyError("get todo", err)
	}
	return &t, nil
}

// Delete removes the todo. Deleting a missing id is not an error.
func (r *TodoRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := squirrel.
		Delete(todoTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete todo query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return classifyError("delete todo", err)
	}
	return nil
}
