package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ScopeState is the lifecycle state of a transaction scope.
type ScopeState string

const (
	ScopeOpen       ScopeState = "open"
	ScopeCommitted  ScopeState = "committed"
	ScopeRolledBack ScopeState = "rolled_back"
)

func (s ScopeState) Terminal() bool { return s == ScopeCommitted || s == ScopeRolledBack }

// Transaction outcomes recorded by the transactions_total counter.
const (
	outcomeCommitted        = "committed"
	outcomeRolledBack       = "rolled_back"
	outcomeImplicitRollback = "implicit_rollback"
	outcomeCancelled        = "cancelled"
	outcomeAborted          = "aborted"
	outcomeCommitFailed     = "commit_failed"
)

const defaultRollbackTimeout = 5 * time.Second

// ErrScopeAborted is returned by Commit when a statement on the scope failed.
// The scope is rolled back instead.
var ErrScopeAborted = errors.New("transaction scope aborted by a failed statement")

// Scope is one open transaction on one checked-out connection. Statements
// issued on a scope are serialized. A scope leaves the open state exactly
// once; every operation after that fails with core.TransactionStateError.
//
// If the context passed to Begin is cancelled while the scope is open, the
// scope is rolled back and its connection released.
type Scope struct {
	id              string
	tx              pgx.Tx
	rollbackTimeout time.Duration
	log             logger.Logger

	mu     sync.Mutex
	state  ScopeState
	failed bool
	stop   func() bool
}

func newScope(ctx context.Context, tx pgx.Tx, rollbackTimeout time.Duration) *Scope {
	id := uuid.NewString()
	s := &Scope{
		id:              id,
		tx:              tx,
		rollbackTimeout: rollbackTimeout,
		log:             logger.FromContext(ctx).With("scope_id", id),
		state:           ScopeOpen,
	}
	s.stop = context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != ScopeOpen {
			return
		}
		s.log.Warn("Context cancelled with open transaction scope; rolling back")
		_ = s.rollbackLocked(ctx, outcomeCancelled)
	})
	return s
}

func (s *Scope) ID() string { return s.id }

func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scope) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("exec"); err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := s.tx.Exec(ctx, sql, args...)
	if err != nil {
		s.markFailed(err)
	}
	return tag, err
}

// Query runs a query on the scope. The returned rows must be closed before
// the next statement on the scope.
func (s *Scope) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("query"); err != nil {
		return nil, err
	}
	rows, err := s.tx.Query(ctx, sql, args...)
	if err != nil {
		s.markFailed(err)
	}
	return rows, err
}

func (s *Scope) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("query"); err != nil {
		return errRow{err: err}
	}
	return &scopeRow{row: s.tx.QueryRow(ctx, sql, args...), scope: s}
}

// Commit makes every write on the scope visible to other sessions. A scope
// with a failed statement is rolled back and ErrScopeAborted returned. A
// commit that fails at the connection level is not retried; the scope ends
// rolled back.
func (s *Scope) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("commit"); err != nil {
		return err
	}
	if s.failed {
		if err := s.rollbackLocked(ctx, outcomeAborted); err != nil {
			return errors.Join(ErrScopeAborted, err)
		}
		return ErrScopeAborted
	}
	err := s.tx.Commit(ctx)
	if err != nil {
		s.finish(ctx, ScopeRolledBack, outcomeCommitFailed)
		s.log.Error("Transaction commit failed", "error", err)
		if errors.Is(err, pgx.ErrTxCommitRollback) {
			return fmt.Errorf("commit transaction: %w", ErrScopeAborted)
		}
		return classifyError("commit transaction", err)
	}
	s.finish(ctx, ScopeCommitted, outcomeCommitted)
	s.log.Debug("Transaction committed")
	return nil
}

// Rollback discards every write on the scope.
func (s *Scope) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("rollback"); err != nil {
		return err
	}
	return s.rollbackLocked(ctx, outcomeRolledBack)
}

// Close rolls the scope back if it is still open. It is a no-op on a
// terminal scope and safe to defer right after Begin.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ScopeOpen {
		return nil
	}
	s.log.Debug("Rolling back abandoned transaction scope")
	return s.rollbackLocked(ctx, outcomeImplicitRollback)
}

func (s *Scope) checkOpen(op string) error {
	if s.state != ScopeOpen {
		return &core.TransactionStateError{Op: op, State: string(s.state)}
	}
	return nil
}

func (s *Scope) markFailed(err error) {
	if !s.failed {
		s.log.Debug("Statement failed inside transaction scope", "error", err)
	}
	s.failed = true
}

// rollbackLocked always leaves the scope rolled back. pgx closes the
// connection when the rollback statement itself fails, which aborts the
// transaction server side.
func (s *Scope) rollbackLocked(ctx context.Context, outcome string) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
	defer cancel()
	err := s.tx.Rollback(rbCtx)
	s.finish(ctx, ScopeRolledBack, outcome)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.log.Warn("Transaction rollback failed", "outcome", outcome, "error", err)
		return classifyError("rollback transaction", err)
	}
	s.log.Debug("Transaction rolled back", "outcome", outcome)
	return nil
}

func (s *Scope) finish(ctx context.Context, state ScopeState, outcome string) {
	s.state = state
	if s.stop != nil {
		s.stop()
	}
	recordTxOutcome(context.WithoutCancel(ctx), outcome)
}

// scopeRow marks the scope failed when a single-row read fails for any
// reason other than an empty result.
type scopeRow struct {
	row   pgx.Row
	scope *Scope
}

func (r *scopeRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		r.scope.mu.Lock()
		r.scope.markFailed(err)
		r.scope.mu.Unlock()
	}
	return err
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
