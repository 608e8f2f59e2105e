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

// Package sqlite provides the SQLite storage backend for single-node
// deployments. SQLite serializes writes, which gives the engine its
// single-writer transaction semantics for free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/pkg/errors"
	_ "modernc.org/sqlite"
)

// Compile-time interface assertions.
var (
	_ store.WorkflowStore   = (*Backend)(nil)
	_ store.RunStore        = (*Backend)(nil)
	_ store.StepStore       = (*Backend)(nil)
	_ store.StepResultStore = (*Backend)(nil)
	_ store.OrderStore      = (*Backend)(nil)
	_ store.Snapshotter     = (*Backend)(nil)
	_ store.Store           = (*Backend)(nil)
)

// Backend is a SQLite storage backend.
type Backend struct {
	db *sql.DB
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New creates a new SQLite backend, configures pragmas, and runs migrations.
func New(cfg Config) (*Backend, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so only 1 connection for writes
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Backend{db: db}

	if err := b.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return b, nil
}

// configurePragmas sets SQLite configuration options.
func (b *Backend) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := b.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate runs database migrations.
func (b *Backend) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS business_objects (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			amount REAL NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			status TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			business_object_id TEXT REFERENCES business_objects(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			step_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			completed_at TEXT,
			error_message TEXT,
			created_at TEXT NOT NULL,
			UNIQUE (run_id, step_index),
			UNIQUE (run_id, step_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id)`,
		`CREATE TABLE IF NOT EXISTS step_results (
			idempotency_key TEXT PRIMARY KEY,
			step_id TEXT NOT NULL REFERENCES steps(id),
			result_data TEXT,
			created_at TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := b.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// CreateWorkflow stores a new workflow definition.
func (b *Backend) CreateWorkflow(ctx context.Context, wf *store.Workflow) error {
	now := time.Now().UTC()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, definition, created_at) VALUES (?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.Definition, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	wf.CreatedAt = now
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (b *Backend) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	var wf store.Workflow
	var createdAt string
	err := b.db.QueryRowContext(ctx,
		`SELECT id, name, definition, created_at FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.Name, &wf.Definition, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	wf.CreatedAt = parseTime(createdAt)
	return &wf, nil
}

// ListWorkflows returns all workflows, newest first.
func (b *Backend) ListWorkflows(ctx context.Context) ([]*store.Workflow, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, name, definition, created_at FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*store.Workflow
	for rows.Next() {
		var wf store.Workflow
		var createdAt string
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Definition, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		wf.CreatedAt = parseTime(createdAt)
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

// CreateRun inserts a run and its pre-ordered steps in one transaction.
func (b *Backend) CreateRun(ctx context.Context, run *store.Run, steps []*store.Step) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, status, started_at, completed_at, created_at, business_object_id)
		 VALUES (?, ?, ?, NULL, NULL, ?, ?)`,
		run.ID, run.WorkflowID, string(store.RunStatusPending),
		now.Format(time.RFC3339Nano), nullString(run.BusinessObjectID),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for _, step := range steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (id, run_id, step_id, step_index, status, idempotency_key,
				retry_count, max_retries, started_at, completed_at, error_message, created_at)
			 VALUES (?, ?, ?, ?, ?, NULL, 0, ?, NULL, NULL, NULL, ?)`,
			step.ID, run.ID, step.StepID, step.StepIndex,
			string(store.StepStatusPending), step.MaxRetries, now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to create step %s: %w", step.StepID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run creation: %w", err)
	}

	run.Status = store.RunStatusPending
	run.CreatedAt = now
	for _, step := range steps {
		step.RunID = run.ID
		step.Status = store.StepStatusPending
		step.CreatedAt = now
	}
	return nil
}

const runColumns = `r.id, r.workflow_id, w.name, r.status, r.business_object_id,
	r.started_at, r.completed_at, r.created_at`

// scanRun scans one joined run row.
func scanRun(scanner interface{ Scan(...any) error }) (*store.Run, error) {
	var run store.Run
	var status string
	var businessObjectID, startedAt, completedAt sql.NullString
	var createdAt string

	err := scanner.Scan(&run.ID, &run.WorkflowID, &run.WorkflowName, &status,
		&businessObjectID, &startedAt, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	run.Status = store.RunStatus(status)
	if businessObjectID.Valid {
		run.BusinessObjectID = businessObjectID.String
	}
	run.StartedAt = parseNullTime(startedAt)
	run.CompletedAt = parseNullTime(completedAt)
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

// GetRun retrieves a run by ID with its workflow name resolved.
func (b *Backend) GetRun(ctx context.Context, id string) (*store.Run, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs r JOIN workflows w ON r.workflow_id = w.id WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (b *Backend) ListRuns(ctx context.Context) ([]*store.Run, error) {
	return b.queryRuns(ctx,
		`SELECT `+runColumns+` FROM runs r JOIN workflows w ON r.workflow_id = w.id ORDER BY r.created_at DESC`)
}

// ListRunsByStatus returns every run in the given status.
func (b *Backend) ListRunsByStatus(ctx context.Context, status store.RunStatus) ([]*store.Run, error) {
	return b.queryRuns(ctx,
		`SELECT `+runColumns+` FROM runs r JOIN workflows w ON r.workflow_id = w.id WHERE r.status = ? ORDER BY r.created_at`,
		string(status))
}

func (b *Backend) queryRuns(ctx context.Context, query string, args ...any) ([]*store.Run, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkRunRunning sets a run to running, stamping started_at if still null.
func (b *Backend) MarkRunRunning(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := b.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
		string(store.RunStatusRunning), now, id)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	return requireRow(result, "run", id)
}

// FinishRun sets a run's terminal status and stamps completed_at.
func (b *Backend) FinishRun(ctx context.Context, id string, status store.RunStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := b.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), now, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return requireRow(result, "run", id)
}

const stepColumns = `id, run_id, step_id, step_index, status, idempotency_key,
	retry_count, max_retries, started_at, completed_at, error_message, created_at`

// scanStep scans one step row.
func scanStep(scanner interface{ Scan(...any) error }) (*store.Step, error) {
	var step store.Step
	var status string
	var idempotencyKey, startedAt, completedAt, errorMessage sql.NullString
	var createdAt string

	err := scanner.Scan(&step.ID, &step.RunID, &step.StepID, &step.StepIndex, &status,
		&idempotencyKey, &step.RetryCount, &step.MaxRetries,
		&startedAt, &completedAt, &errorMessage, &createdAt)
	if err != nil {
		return nil, err
	}

	step.Status = store.StepStatus(status)
	if idempotencyKey.Valid {
		step.IdempotencyKey = idempotencyKey.String
	}
	if errorMessage.Valid {
		step.ErrorMessage = errorMessage.String
	}
	step.StartedAt = parseNullTime(startedAt)
	step.CompletedAt = parseNullTime(completedAt)
	step.CreatedAt = parseTime(createdAt)
	return &step, nil
}

// ListSteps returns a run's steps ordered by step_index ascending.
func (b *Backend) ListSteps(ctx context.Context, runID string) ([]*store.Step, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE run_id = ? ORDER BY step_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*store.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetStep retrieves a step row by its UUID.
func (b *Backend) GetStep(ctx context.Context, id string) (*store.Step, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "step", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// MarkStepRunning records the attempt's idempotency key and moves the step
// to running. Committed before the task executes.
func (b *Backend) MarkStepRunning(ctx context.Context, id, idempotencyKey string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := b.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, idempotency_key = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
		string(store.StepStatusRunning), idempotencyKey, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark step running: %w", err)
	}
	return requireRow(result, "step", id)
}

// MarkStepPendingRetry reschedules a failed attempt with a cleared key.
func (b *Backend) MarkStepPendingRetry(ctx context.Context, id string, retryCount int, errorMessage string) error {
	result, err := b.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, retry_count = ?, idempotency_key = NULL, error_message = ? WHERE id = ?`,
		string(store.StepStatusPending), retryCount, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule step: %w", err)
	}
	return requireRow(result, "step", id)
}

// MarkStepFailed moves a step to its terminal failed state.
func (b *Backend) MarkStepFailed(ctx context.Context, id, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := b.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		string(store.StepStatusFailed), now, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark step failed: %w", err)
	}
	return requireRow(result, "step", id)
}

// MarkStepCompleted moves a step to completed without a result insert.
func (b *Backend) MarkStepCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := b.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ? WHERE id = ?`,
		string(store.StepStatusCompleted), now, id)
	if err != nil {
		return fmt.Errorf("failed to mark step completed: %w", err)
	}
	return requireRow(result, "step", id)
}

// CompleteStep performs the atomic commit for a successful step attempt:
// result insert, step completion, and action dispatch share one transaction.
func (b *Backend) CompleteStep(ctx context.Context, id, idempotencyKey string, resultData []byte, action func(store.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO step_results (idempotency_key, step_id, result_data, created_at) VALUES (?, ?, ?, ?)`,
		idempotencyKey, id, nullBytes(resultData), now)
	if err != nil {
		return fmt.Errorf("failed to insert step result: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ? WHERE id = ?`,
		string(store.StepStatusCompleted), now, id)
	if err != nil {
		return fmt.Errorf("failed to complete step: %w", err)
	}

	if action != nil {
		if err := action(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step completion: %w", err)
	}
	return nil
}

// GetStepResult retrieves a result by idempotency key, (nil, nil) if absent.
func (b *Backend) GetStepResult(ctx context.Context, idempotencyKey string) (*store.StepResult, error) {
	var res store.StepResult
	var resultData sql.NullString
	var createdAt string
	err := b.db.QueryRowContext(ctx,
		`SELECT idempotency_key, step_id, result_data, created_at FROM step_results WHERE idempotency_key = ?`,
		idempotencyKey,
	).Scan(&res.IdempotencyKey, &res.StepID, &resultData, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step result: %w", err)
	}
	if resultData.Valid {
		res.ResultData = []byte(resultData.String)
	}
	res.CreatedAt = parseTime(createdAt)
	return &res, nil
}

// CreateOrder inserts a new order in pending status.
func (b *Backend) CreateOrder(ctx context.Context, o *store.Order) error {
	now := time.Now().UTC()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO business_objects (id, status, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		o.ID, string(store.OrderStatusPending), o.Amount,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	o.Status = store.OrderStatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetOrder retrieves an order by ID.
func (b *Backend) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	o, err := getOrder(ctx, b.db, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Snapshot dumps row counts and the newest rows of every table.
func (b *Backend) Snapshot(ctx context.Context, limit int) (map[string]store.TableDump, error) {
	tables := []string{"workflows", "runs", "steps", "step_results", "business_objects"}
	result := make(map[string]store.TableDump, len(tables))

	for _, table := range tables {
		var count int
		if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}

		rows, err := b.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid DESC LIMIT %d`, table, limit))
		if err != nil {
			return nil, fmt.Errorf("failed to dump %s: %w", table, err)
		}

		dump, err := dumpRows(rows)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to dump %s: %w", table, err)
		}

		result[table] = store.TableDump{Count: count, Rows: dump}
	}
	return result, nil
}

// dumpRows converts generic rows into maps keyed by column name.
func dumpRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// querier abstracts *sql.DB and *sql.Tx for shared order queries.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getOrder(ctx context.Context, q querier, id string) (*store.Order, error) {
	var o store.Order
	var status, createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, status, amount, created_at, updated_at FROM business_objects WHERE id = ?`, id,
	).Scan(&o.ID, &status, &o.Amount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Status = store.OrderStatus(status)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

// sqliteTx adapts an open *sql.Tx to the store.Tx action surface.
type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ store.Tx = (*sqliteTx)(nil)

// GetOrder retrieves an order within the transaction.
func (t *sqliteTx) GetOrder(id string) (*store.Order, error) {
	return getOrder(t.ctx, t.tx, id)
}

// UpdateOrderStatus transitions an order within the transaction.
func (t *sqliteTx) UpdateOrderStatus(id string, status store.OrderStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := t.tx.ExecContext(t.ctx,
		`UPDATE business_objects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return requireRow(result, "order", id)
}

// Helper functions

// requireRow converts a zero-row update into a NotFoundError.
func requireRow(result sql.Result, resource, id string) error {
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return &errors.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// parseTime parses a stored RFC3339 timestamp.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// parseNullTime parses a nullable stored timestamp.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString returns nil if the string is empty, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullBytes returns nil if the byte slice is empty, otherwise its string form.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
