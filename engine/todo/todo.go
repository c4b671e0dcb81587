// Package todo holds the entity used to exercise transaction isolation.
package todo

import "context"

type Todo struct {
	ID          int64  `json:"id"          db:"id"`
	Description string `json:"description" db:"description"`
}

// Repository reads and writes todos. Get returns core.ErrNotFound for a
// missing id.
type Repository interface {
	Insert(ctx context.Context, t *Todo) error
	Get(ctx context.Context, id int64) (*Todo, error)
	Delete(ctx context.Context, id int64) error
}
