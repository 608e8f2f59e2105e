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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	otrace "go.opentelemetry.io/otel/trace"

	"github.com/sablerun/sable/internal/log"
	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/internal/tracing"
	"github.com/sablerun/sable/pkg/workflow"
)

// Worker executes one run end-to-end: it marks the run running, drives each
// step in step_index order through the executor, and records the terminal
// run status. A worker mutates only its own run and steps.
type Worker struct {
	store    store.Store
	executor *Executor
	logger   *slog.Logger
}

// NewWorker creates a run worker.
func NewWorker(st store.Store, executor *Executor, logger *slog.Logger) *Worker {
	return &Worker{store: st, executor: executor, logger: logger}
}

// Run executes the run to a terminal status. Internal errors — anything
// outside ordinary step failure — mark the run failed rather than leaving
// it running; a worker must never return with its run still in flight.
func (w *Worker) Run(ctx context.Context, runID string) {
	logger := w.logger.With(slog.String(log.RunIDKey, runID))

	err := w.execute(ctx, runID, logger)
	if err != nil {
		logger.Error("run worker error", log.Error(err))
		if finishErr := w.store.FinishRun(ctx, runID, store.RunStatusFailed); finishErr != nil {
			logger.Error("failed to record run failure", log.Error(finishErr))
		}
		runsFinished.WithLabelValues(string(store.RunStatusFailed)).Inc()
	}
}

// execute drives the run. It returns nil once the run has reached a
// terminal status; any error return means the run is still marked running
// and the caller must fail it.
func (w *Worker) execute(ctx context.Context, runID string, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in run worker: %v", r)
		}
	}()

	run, err := w.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	wf, err := w.store.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return err
	}

	// The persisted step_index ordering is the source of truth; the
	// definition is parsed only to recover each step's config.
	def, err := workflow.ParseDefinition([]byte(wf.Definition))
	if err != nil {
		return fmt.Errorf("stored definition for workflow %s does not parse: %w", wf.ID, err)
	}
	configs := make(map[string]workflow.StepConfig, len(def.Steps))
	for _, s := range def.Steps {
		configs[s.ID] = s.Config
	}

	logger = log.WithRunContext(w.logger, runID, wf.Name)
	logger.Info("starting run execution", slog.Int("steps", len(def.Steps)))

	ctx, span := tracing.Tracer().Start(ctx, "run.execute", otrace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("workflow", wf.Name),
	))
	defer span.End()

	if err := w.store.MarkRunRunning(ctx, runID); err != nil {
		return err
	}

	steps, err := w.store.ListSteps(ctx, runID)
	if err != nil {
		return err
	}

	runFailed := false
	for _, step := range steps {
		// Completed steps are skipped on resume; pending and running
		// steps both re-execute.
		if step.Status == store.StepStatusCompleted {
			logger.Info("step already completed, skipping", slog.String(log.StepIDKey, step.StepID))
			continue
		}

		cfg, ok := configs[step.StepID]
		if !ok {
			return fmt.Errorf("step %q has no config in workflow definition", step.StepID)
		}

		for {
			// Re-fetch for the current retry count; a rescheduled
			// attempt bumps it.
			current, err := w.store.GetStep(ctx, step.ID)
			if err != nil {
				return err
			}

			outcome, err := w.executor.ExecuteStep(ctx, run, current, cfg)
			if err != nil {
				return err
			}
			if outcome == OutcomeRetry {
				continue
			}
			if outcome == OutcomePermanentFailure {
				runFailed = true
			}
			break
		}

		if runFailed {
			break
		}
	}

	finalStatus := store.RunStatusCompleted
	if runFailed {
		finalStatus = store.RunStatusFailed
	}
	if err := w.store.FinishRun(ctx, runID, finalStatus); err != nil {
		return err
	}

	runsFinished.WithLabelValues(string(finalStatus)).Inc()
	logger.Info("run finished", slog.String("status", string(finalStatus)))
	return nil
}
