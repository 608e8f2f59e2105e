// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine implements the durable workflow execution core: the task
// runner, the action registry, the step executor, per-run workers, the
// supervisor, and startup recovery.
package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/pkg/errors"
	"github.com/sablerun/sable/pkg/workflow"
)

// Engine is the facade the hosting surface drives. It owns the supervisor
// and exposes the core operations: workflow and order CRUD, run creation
// and inspection, and startup recovery.
type Engine struct {
	store      store.Store
	supervisor *Supervisor
	logger     *slog.Logger
}

// Option configures engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	tasks   *TaskRunner
	actions *Registry
}

// WithTaskRunner replaces the default task runner. Tests use this to make
// task execution instantaneous and deterministic.
func WithTaskRunner(tasks *TaskRunner) Option {
	return func(o *engineOptions) { o.tasks = tasks }
}

// WithActions replaces the default action registry.
func WithActions(actions *Registry) Option {
	return func(o *engineOptions) { o.actions = actions }
}

// New creates an engine over the given store.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Engine {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tasks == nil {
		o.tasks = NewTaskRunner()
	}
	if o.actions == nil {
		o.actions = DefaultRegistry(logger)
	}

	executor := NewExecutor(st, o.tasks, o.actions, logger)
	worker := NewWorker(st, executor, logger)
	supervisor := NewSupervisor(worker, logger)

	return &Engine{
		store:      st,
		supervisor: supervisor,
		logger:     logger,
	}
}

// CreateWorkflow validates and stores a workflow definition. The raw
// document is stored verbatim. Definitions whose dependency graph cannot
// be linearized are rejected here; nothing is persisted on failure.
func (e *Engine) CreateWorkflow(ctx context.Context, definition []byte) (*store.Workflow, error) {
	def, err := workflow.ParseDefinition(definition)
	if err != nil {
		return nil, err
	}
	if _, err := def.Plan(); err != nil {
		return nil, err
	}

	wf := &store.Workflow{
		ID:         uuid.NewString(),
		Name:       def.Name,
		Definition: string(definition),
	}
	if err := e.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// StartRun creates a run with its steps pre-ordered by the planner, hands
// it to the supervisor, and returns immediately. businessObjectID may be
// empty; when set, the referenced order must exist.
func (e *Engine) StartRun(ctx context.Context, workflowID, businessObjectID string) (*store.Run, []*store.Step, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}

	def, err := workflow.ParseDefinition([]byte(wf.Definition))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "stored definition for workflow %s", workflowID)
	}
	ordered, err := def.Plan()
	if err != nil {
		return nil, nil, err
	}

	if businessObjectID != "" {
		if _, err := e.store.GetOrder(ctx, businessObjectID); err != nil {
			return nil, nil, err
		}
	}

	run := &store.Run{
		ID:               uuid.NewString(),
		WorkflowID:       workflowID,
		WorkflowName:     wf.Name,
		BusinessObjectID: businessObjectID,
	}
	steps := make([]*store.Step, len(ordered))
	for i, s := range ordered {
		steps[i] = &store.Step{
			ID:         uuid.NewString(),
			StepID:     s.ID,
			StepIndex:  i,
			MaxRetries: s.Config.MaxRetries,
		}
	}

	if err := e.store.CreateRun(ctx, run, steps); err != nil {
		return nil, nil, err
	}

	e.supervisor.Start(run.ID)
	return run, steps, nil
}

// GetRun returns a read-only snapshot of a run and its ordered steps.
func (e *Engine) GetRun(ctx context.Context, id string) (*store.Run, []*store.Step, error) {
	run, err := e.store.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	steps, err := e.store.ListSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, steps, nil
}

// ListRuns returns all runs, newest first.
func (e *Engine) ListRuns(ctx context.Context) ([]*store.Run, error) {
	return e.store.ListRuns(ctx)
}

// GetWorkflow returns a stored workflow.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	return e.store.GetWorkflow(ctx, id)
}

// ListWorkflows returns all workflows, newest first.
func (e *Engine) ListWorkflows(ctx context.Context) ([]*store.Workflow, error) {
	return e.store.ListWorkflows(ctx)
}

// CreateOrder creates a demo order in pending status.
func (e *Engine) CreateOrder(ctx context.Context, amount float64) (*store.Order, error) {
	if amount <= 0 {
		return nil, &errors.ValidationError{Field: "amount", Message: "amount must be > 0"}
	}
	o := &store.Order{
		ID:     uuid.NewString(),
		Amount: amount,
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder returns a demo order.
func (e *Engine) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	return e.store.GetOrder(ctx, id)
}

// Recover resubmits runs left running by a crashed process. Must complete
// before the external surface starts serving.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	return Recover(ctx, e.store, e.supervisor, e.logger)
}

// ActiveWorkers returns the number of live run workers.
func (e *Engine) ActiveWorkers() int {
	return e.supervisor.ActiveCount()
}

// Wait blocks until all live run workers finish. Tests and graceful
// shutdown use this.
func (e *Engine) Wait() {
	e.supervisor.Wait()
}
