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

package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otrace "go.opentelemetry.io/otel/trace"

	"github.com/sablerun/sable/internal/log"
	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/internal/tracing"
	"github.com/sablerun/sable/pkg/workflow"
)

// Outcome is the result of one step attempt.
type Outcome int

const (
	// OutcomeCompleted means the step reached its terminal completed state.
	OutcomeCompleted Outcome = iota
	// OutcomeRetry means the attempt failed with retry budget remaining;
	// the step is back in pending and the caller should invoke again.
	OutcomeRetry
	// OutcomePermanentFailure means the step exhausted its retries and is
	// terminally failed.
	OutcomePermanentFailure
)

// String returns the outcome's metric label.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetry:
		return "retry"
	case OutcomePermanentFailure:
		return "failed"
	default:
		return "unknown"
	}
}

// executorStore is the slice of the store the executor needs.
type executorStore interface {
	store.StepStore
	store.StepResultStore
}

// Executor drives a single step attempt through the durability protocol:
//
//  1. Issue a fresh idempotency key and durably mark the step running.
//  2. Probe the result table for that key; a hit means the attempt already
//     committed, so complete without re-executing.
//  3. Run the simulated task.
//  4. On success, commit result insert + completion + action atomically.
//  5. On failure, reschedule with a cleared key while budget remains,
//     otherwise fail terminally.
//
// An error return means the executor could not even record the attempt's
// bookkeeping; the run worker treats that as a worker-internal error.
type Executor struct {
	store   executorStore
	tasks   *TaskRunner
	actions *Registry
	logger  *slog.Logger
	newKey  func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithKeyGenerator replaces the idempotency key source. Tests use this to
// issue known keys.
func WithKeyGenerator(fn func() string) ExecutorOption {
	return func(e *Executor) { e.newKey = fn }
}

// NewExecutor creates a step executor issuing random UUID keys.
func NewExecutor(st executorStore, tasks *TaskRunner, actions *Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:   st,
		tasks:   tasks,
		actions: actions,
		logger:  logger,
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteStep performs one attempt of the given step. The step row must be
// current: retry accounting reads RetryCount from it.
func (e *Executor) ExecuteStep(ctx context.Context, run *store.Run, step *store.Step, cfg workflow.StepConfig) (Outcome, error) {
	logger := log.WithStepContext(e.logger, run.ID, step.StepID)

	ctx, span := tracing.Tracer().Start(ctx, "step.execute", otrace.WithAttributes(
		attribute.String("run_id", run.ID),
		attribute.String("step_id", step.StepID),
		attribute.Int("attempt", step.RetryCount+1),
	))
	defer span.End()

	// Write A: the key must be durable before the task runs, so a crash
	// during the task leaves a running step with a key and no result.
	key := e.newKey()
	if err := e.store.MarkStepRunning(ctx, step.ID, key); err != nil {
		return e.recordFailure(ctx, logger, step, err)
	}

	// Probe: a result under this key means a prior attempt with the same
	// key already committed. The fresh-key discipline makes a hit
	// impossible in the normal flow; the probe guards the protocol anyway.
	existing, err := e.store.GetStepResult(ctx, key)
	if err != nil {
		return e.recordFailure(ctx, logger, step, err)
	}
	if existing != nil {
		logger.Info("found existing result for idempotency key, skipping execution",
			slog.String("idempotency_key", key))
		if err := e.store.MarkStepCompleted(ctx, step.ID); err != nil {
			return 0, err
		}
		stepAttempts.WithLabelValues(OutcomeCompleted.String()).Inc()
		return OutcomeCompleted, nil
	}

	result, taskErr := e.tasks.Execute(ctx, cfg)
	if taskErr == nil {
		payload, err := json.Marshal(result)
		if err != nil {
			return 0, err
		}

		// Write B: result insert, completion, and action dispatch commit
		// together or not at all. A failing action aborts the whole
		// transaction and counts as a failed attempt.
		action := e.resolveAction(cfg.Action, run.BusinessObjectID)
		if err := e.store.CompleteStep(ctx, step.ID, key, payload, action); err != nil {
			logger.Warn("atomic completion failed", log.Error(err))
			return e.recordFailure(ctx, logger, step, err)
		}

		logger.Info("step completed")
		stepAttempts.WithLabelValues(OutcomeCompleted.String()).Inc()
		return OutcomeCompleted, nil
	}

	return e.recordFailure(ctx, logger, step, taskErr)
}

// resolveAction returns the transaction callback for the step's action, or
// nil when dispatch is a no-op: no action configured, the name is unknown,
// or the run carries no business object.
func (e *Executor) resolveAction(name, businessObjectID string) func(store.Tx) error {
	if name == "" || businessObjectID == "" {
		return nil
	}
	fn, ok := e.actions.Lookup(name)
	if !ok {
		return nil
	}
	return func(tx store.Tx) error {
		return fn(tx, businessObjectID)
	}
}

// recordFailure applies retry accounting for a failed attempt: reschedule
// while budget remains, otherwise fail the step terminally.
func (e *Executor) recordFailure(ctx context.Context, logger *slog.Logger, step *store.Step, cause error) (Outcome, error) {
	if step.RetryCount < step.MaxRetries {
		if err := e.store.MarkStepPendingRetry(ctx, step.ID, step.RetryCount+1, cause.Error()); err != nil {
			return 0, err
		}
		logger.Info("step attempt failed, will retry",
			slog.Int("attempt", step.RetryCount+1),
			slog.Int("max_attempts", step.MaxRetries+1),
			log.Error(cause))
		stepAttempts.WithLabelValues(OutcomeRetry.String()).Inc()
		return OutcomeRetry, nil
	}

	if err := e.store.MarkStepFailed(ctx, step.ID, cause.Error()); err != nil {
		return 0, err
	}
	logger.Warn("step permanently failed",
		slog.Int("attempts", step.RetryCount+1),
		log.Error(cause))
	stepAttempts.WithLabelValues(OutcomePermanentFailure.String()).Inc()
	return OutcomePermanentFailure, nil
}
