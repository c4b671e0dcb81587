package bookstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/compozy/bookstore/engine/todo"
	"github.com/compozy/bookstore/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrIsolationViolated is returned when the workload observes a row where the
// transaction contract says it must not be, or misses one it must see.
var ErrIsolationViolated = errors.New("transaction isolation violated")

const (
	PhaseExplicitRollback = "explicit_rollback"
	PhaseImplicitRollback = "implicit_rollback"
	PhaseCommit           = "commit"
)

// PhaseReport records what one scope could see of its own insert.
type PhaseReport struct {
	Name                 string              `json:"name"`
	ScopeID              string              `json:"scope_id"`
	FinalState           postgres.ScopeState `json:"final_state"`
	VisibleInScope       bool                `json:"visible_in_scope"`
	VisibleOutsideBefore bool                `json:"visible_outside_before"`
	VisibleOutsideAfter  bool                `json:"visible_outside_after"`
	Violations           []string            `json:"violations,omitempty"`
}

func (p *PhaseReport) expect(cond bool, msg string) {
	if !cond {
		p.Violations = append(p.Violations, msg)
	}
}

// WorkloadReport is the outcome of RunTransactionalWorkload.
type WorkloadReport struct {
	TodoID int64         `json:"todo_id"`
	Phases []PhaseReport `json:"phases"`
}

// OK reports whether every phase behaved as required.
func (r *WorkloadReport) OK() bool {
	for i := range r.Phases {
		if len(r.Phases[i].Violations) > 0 {
			return false
		}
	}
	return true
}

func (r *WorkloadReport) violations() []string {
	var out []string
	for i := range r.Phases {
		for _, v := range r.Phases[i].Violations {
			out = append(out, r.Phases[i].Name+": "+v)
		}
	}
	return out
}

// RunTransactionalWorkload drives three scopes over the same todo id: one
// rolled back explicitly, one abandoned, and one committed. Each phase
// checks that the insert is visible inside its scope, invisible outside it
// until commit, and gone after a rollback. Only the committed phase leaves
// the row behind.
func (s *Service) RunTransactionalWorkload(ctx context.Context, todoID int64) (_ *WorkloadReport, err error) {
	ctx, span := s.startSpan(ctx, "RunTransactionalWorkload", attribute.Int64("todo.id", todoID))
	defer func() { endSpan(span, err) }()
	log := logger.FromContext(ctx).With("todo_id", todoID)
	if err := s.todos.Delete(ctx, todoID); err != nil {
		return nil, fmt.Errorf("reset todo %d: %w", todoID, err)
	}
	report := &WorkloadReport{TodoID: todoID}
	phases := []struct {
		name string
		run  func(context.Context, *PhaseReport, *todo.Todo) error
	}{
		{PhaseExplicitRollback, s.explicitRollbackPhase},
		{PhaseImplicitRollback, s.implicitRollbackPhase},
		{PhaseCommit, s.commitPhase},
	}
	for _, phase := range phases {
		p := PhaseReport{Name: phase.name}
		item := &todo.Todo{ID: todoID, Description: "workload " + phase.name}
		if err := phase.run(ctx, &p, item); err != nil {
			return report, fmt.Errorf("workload phase %s: %w", phase.name, err)
		}
		after, err := s.visibleOutside(ctx, todoID)
		if err != nil {
			return report, fmt.Errorf("workload phase %s: %w", phase.name, err)
		}
		p.VisibleOutsideAfter = after
		if phase.name == PhaseCommit {
			p.expect(after, "committed row not visible outside the scope")
		} else {
			p.expect(!after, "rolled back row visible outside the scope")
		}
		log.Info("Workload phase finished",
			"phase", p.Name,
			"scope_id", p.ScopeID,
			"state", string(p.FinalState),
			"violations", len(p.Violations),
		)
		span.AddEvent("phase finished", trace.WithAttributes(
			attribute.String("phase", p.Name),
			attribute.String("scope.state", string(p.FinalState)),
			attribute.Int("violations", len(p.Violations)),
		))
		report.Phases = append(report.Phases, p)
	}
	if !report.OK() {
		return report, fmt.Errorf("%w: %s", ErrIsolationViolated, strings.Join(report.violations(), "; "))
	}
	return report, nil
}

// insertAndObserve inserts item on the scope and records both views of it.
func (s *Service) insertAndObserve(ctx context.Context, scope *postgres.Scope, p *PhaseReport, item *todo.Todo) error {
	p.ScopeID = scope.ID()
	scoped := s.todos.With(scope)
	if err := scoped.Insert(ctx, item); err != nil {
		return err
	}
	inScope, err := visible(ctx, scoped, item.ID)
	if err != nil {
		return err
	}
	outside, err := s.visibleOutside(ctx, item.ID)
	if err != nil {
		return err
	}
	p.VisibleInScope = inScope
	p.VisibleOutsideBefore = outside
	p.expect(inScope, "insert not visible inside its own scope")
	p.expect(!outside, "uncommitted insert visible outside the scope")
	return nil
}

func (s *Service) explicitRollbackPhase(ctx context.Context, p *PhaseReport, item *todo.Todo) error {
	scope, err := s.coord.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = scope.Close(ctx) }()
	if err := s.insertAndObserve(ctx, scope, p, item); err != nil {
		return err
	}
	if err := scope.Rollback(ctx); err != nil {
		return err
	}
	p.FinalState = scope.State()
	return nil
}

func (s *Service) implicitRollbackPhase(ctx context.Context, p *PhaseReport, item *todo.Todo) error {
	var scope *postgres.Scope
	err := s.coord.WithScope(ctx, func(ctx context.Context, sc *postgres.Scope) error {
		scope = sc
		return s.insertAndObserve(ctx, sc, p, item)
	})
	if err != nil {
		return err
	}
	p.FinalState = scope.State()
	return nil
}

func (s *Service) commitPhase(ctx context.Context, p *PhaseReport, item *todo.Todo) error {
	scope, err := s.coord.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = scope.Close(ctx) }()
	if err := s.insertAndObserve(ctx, scope, p, item); err != nil {
		return err
	}
	if err := scope.Commit(ctx); err != nil {
		return err
	}
	p.FinalState = scope.State()
	return nil
}

func (s *Service) visibleOutside(ctx context.Context, id int64) (bool, error) {
	return visible(ctx, s.todos, id)
}

func visible(ctx context.Context, repo todo.Repository, id int64) (bool, error) {
	_, err := repo.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
