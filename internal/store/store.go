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

// Package store defines the persistent entities of the workflow engine and
// the storage interfaces the engine runs against.
//
// # Interface Hierarchy
//
// The package uses interface segregation so components can declare minimal
// requirements:
//
//   - WorkflowStore: workflow definitions (immutable once created)
//   - RunStore: runs and their bulk-created steps
//   - StepStore: per-step state transitions, including the atomic completion
//   - StepResultStore: idempotency records
//   - OrderStore: the demo business objects mutated by actions
//
// The Store interface composes all of these plus io.Closer for full-featured
// implementations such as the SQLite backend.
package store

import (
	"context"
	"io"
	"time"
)

// RunStatus represents the status of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus represents the status of a single step within a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// OrderStatus represents the lifecycle status of a demo order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusValidated OrderStatus = "validated"
	OrderStatusCharged   OrderStatus = "charged"
	OrderStatusShipped   OrderStatus = "shipped"
)

// Workflow is a stored workflow definition. The definition document is kept
// verbatim as submitted by the caller.
type Workflow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Definition string    `json:"definition"`
	CreatedAt  time.Time `json:"created_at"`
}

// Run is one execution instance of a workflow.
type Run struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Status     RunStatus `json:"status"`

	// BusinessObjectID optionally references the order mutated by this
	// run's actions. Empty means the run has no business object and all
	// action dispatch is a no-op.
	BusinessObjectID string `json:"business_object_id,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// WorkflowName is resolved by join on reads; it is not a column of the
	// runs table.
	WorkflowName string `json:"workflow_name,omitempty"`
}

// Step is one node of a run. StepID is the user-chosen name from the
// definition, unique within the run; ID is the row's UUID.
type Step struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	StepID    string     `json:"step_id"`
	StepIndex int        `json:"step_index"`
	Status    StepStatus `json:"status"`

	// IdempotencyKey is the token issued for the current attempt. It is
	// cleared when a failed attempt is rescheduled so the next attempt
	// issues a fresh one.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// StepResult is the append-only idempotency record proving a step attempt
// committed successfully. The idempotency key is the primary key.
type StepResult struct {
	IdempotencyKey string    `json:"idempotency_key"`
	StepID         string    `json:"step_id"`
	ResultData     []byte    `json:"result_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Order is the demo business object driven through its lifecycle by
// registered actions.
type Order struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Amount    float64     `json:"amount"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Tx exposes the order operations available to action functions inside a
// step's atomic completion transaction. Mutations made through a Tx commit
// or roll back together with the step completion itself.
type Tx interface {
	// GetOrder retrieves an order by ID within the transaction.
	GetOrder(id string) (*Order, error)

	// UpdateOrderStatus transitions an order and bumps its updated_at.
	UpdateOrderStatus(id string, status OrderStatus) error
}

// ActionFunc is a business-logic function dispatched inside a step's atomic
// completion. Returning an error aborts the whole transaction.
type ActionFunc func(tx Tx, orderID string) error

// WorkflowStore stores immutable workflow definitions.
type WorkflowStore interface {
	// CreateWorkflow stores a new workflow definition.
	CreateWorkflow(ctx context.Context, wf *Workflow) error

	// GetWorkflow retrieves a workflow by ID.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	// ListWorkflows returns all workflows, newest first.
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
}

// RunStore stores runs and their steps.
type RunStore interface {
	// CreateRun inserts a run together with its pre-ordered steps in a
	// single transaction. Step rows must carry contiguous step_index
	// values starting at 0.
	CreateRun(ctx context.Context, run *Run, steps []*Step) error

	// GetRun retrieves a run by ID with its workflow name resolved.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns all runs, newest first, workflow names resolved.
	ListRuns(ctx context.Context) ([]*Run, error)

	// ListRunsByStatus returns every run in the given status. Recovery
	// uses this to find runs left running by a crashed process.
	ListRunsByStatus(ctx context.Context, status RunStatus) ([]*Run, error)

	// MarkRunRunning sets a run to running and stamps started_at if it is
	// still null.
	MarkRunRunning(ctx context.Context, id string) error

	// FinishRun sets a run's terminal status and stamps completed_at.
	FinishRun(ctx context.Context, id string, status RunStatus) error
}

// StepStore drives per-step state transitions. Every method commits a
// single write so each transition is individually durable.
type StepStore interface {
	// ListSteps returns a run's steps ordered by step_index ascending.
	ListSteps(ctx context.Context, runID string) ([]*Step, error)

	// GetStep retrieves a step row by its UUID.
	GetStep(ctx context.Context, id string) (*Step, error)

	// MarkStepRunning records the attempt's idempotency key and moves the
	// step to running, stamping started_at if still null. This is the
	// durable write that precedes task execution.
	MarkStepRunning(ctx context.Context, id, idempotencyKey string) error

	// MarkStepPendingRetry reschedules a failed attempt: bumps the retry
	// count, records the error, clears the idempotency key, and returns
	// the step to pending.
	MarkStepPendingRetry(ctx context.Context, id string, retryCount int, errorMessage string) error

	// MarkStepFailed moves a step to its terminal failed state.
	MarkStepFailed(ctx context.Context, id, errorMessage string) error

	// MarkStepCompleted moves a step to completed without inserting a
	// result row. Used only when the probe finds the attempt's result
	// already durable.
	MarkStepCompleted(ctx context.Context, id string) error

	// CompleteStep is the atomic commit for a successful attempt: in one
	// transaction it inserts the step result keyed by idempotencyKey,
	// marks the step completed, and invokes action (if non-nil) against
	// the transaction. Any error rolls the whole transaction back.
	CompleteStep(ctx context.Context, id, idempotencyKey string, resultData []byte, action func(Tx) error) error
}

// StepResultStore reads idempotency records.
type StepResultStore interface {
	// GetStepResult retrieves a result by idempotency key. Returns
	// (nil, nil) when no result exists for the key.
	GetStepResult(ctx context.Context, idempotencyKey string) (*StepResult, error)
}

// OrderStore stores the demo orders outside of step transactions.
type OrderStore interface {
	// CreateOrder inserts a new order in pending status.
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrder retrieves an order by ID.
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// Snapshotter is an optional interface for inspection tooling. Implementations
// dump row counts and recent rows per table.
type Snapshotter interface {
	// Snapshot returns a dump of every table, keyed by table name.
	Snapshot(ctx context.Context, limit int) (map[string]TableDump, error)
}

// TableDump holds the total row count and the newest rows of one table.
type TableDump struct {
	Count int              `json:"count"`
	Rows  []map[string]any `json:"rows"`
}

// Store is the full storage interface the daemon wires up.
type Store interface {
	WorkflowStore
	RunStore
	StepStore
	StepResultStore
	OrderStore
	io.Closer
}
