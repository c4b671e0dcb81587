package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/logger"
)

// Coordinator opens transaction scopes against the pool.
type Coordinator struct {
	db              DB
	rollbackTimeout time.Duration
}

type CoordinatorOption func(*Coordinator)

// WithRollbackTimeout bounds rollbacks issued after the caller's context is
// already cancelled.
func WithRollbackTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.rollbackTimeout = d
		}
	}
}

func NewCoordinator(db DB, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{db: db, rollbackTimeout: defaultRollbackTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin checks out a connection and starts a transaction on it. The caller
// owns the scope and must end it with Commit, Rollback or Close.
func (c *Coordinator) Begin(ctx context.Context) (*Scope, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, core.NewConnectionError("begin transaction", err)
	}
	scope := newScope(ctx, tx, c.rollbackTimeout)
	scope.log.Debug("Transaction scope opened")
	return scope, nil
}

// WithScope runs fn inside a new scope. fn decides whether to commit; a scope
// still open when fn returns, fails or panics is rolled back.
func (c *Coordinator) WithScope(ctx context.Context, fn func(ctx context.Context, s *Scope) error) (err error) {
	scope, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := scope.Close(ctx); rbErr != nil {
				logger.FromContext(ctx).Warn("Transaction rollback failed after panic", "error", rbErr)
			}
			panic(p)
		}
		if rbErr := scope.Close(ctx); rbErr != nil {
			if err == nil {
				err = rbErr
				return
			}
			logger.FromContext(ctx).Warn("Transaction rollback failed", "error", rbErr)
		}
	}()
	return fn(ctx, scope)
}

// InTx runs fn inside a new scope and commits when fn returns nil. Any error
// or panic rolls the scope back.
func (c *Coordinator) InTx(ctx context.Context, fn func(ctx context.Context, s *Scope) error) error {
	return c.WithScope(ctx, func(ctx context.Context, s *Scope) error {
		if err := fn(ctx, s); err != nil {
			return err
		}
		if s.State() != ScopeOpen {
			return nil
		}
		if err := s.Commit(ctx); err != nil {
			return fmt.Errorf("in transaction: %w", err)
		}
		return nil
	})
}
