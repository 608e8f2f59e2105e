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
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/internal/store/sqlite"
	"github.com/sablerun/sable/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	backend, err := sqlite.New(sqlite.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

// seedWorkflow stores def and returns the workflow row.
func seedWorkflow(t *testing.T, st store.Store, def *workflow.Definition) *store.Workflow {
	t.Helper()
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal definition: %v", err)
	}
	wf := &store.Workflow{
		ID:         uuid.NewString(),
		Name:       def.Name,
		Definition: string(data),
	}
	if err := st.CreateWorkflow(context.Background(), wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	return wf
}

// seedRun creates a run with planner-ordered steps directly in the store,
// bypassing the supervisor.
func seedRun(t *testing.T, st store.Store, wf *store.Workflow, def *workflow.Definition, businessObjectID string) (*store.Run, []*store.Step) {
	t.Helper()
	ordered, err := def.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	run := &store.Run{
		ID:               uuid.NewString(),
		WorkflowID:       wf.ID,
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
	if err := st.CreateRun(context.Background(), run, steps); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	return run, steps
}

func seedOrder(t *testing.T, st store.Store, amount float64) *store.Order {
	t.Helper()
	o := &store.Order{ID: uuid.NewString(), Amount: amount}
	if err := st.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return o
}

func stepConfigNoAction() workflow.StepConfig {
	return workflow.StepConfig{DurationSeconds: 1}
}

// linearOrderDefinition is the demo four-step order workflow with all
// failures disabled.
func linearOrderDefinition() *workflow.Definition {
	return &workflow.Definition{
		Name: "order_flow",
		Steps: []workflow.StepDefinition{
			{ID: "validate", Type: "task", Config: workflow.StepConfig{Action: "validate_order"}},
			{ID: "charge", Type: "task", DependsOn: []string{"validate"}, Config: workflow.StepConfig{Action: "charge_payment"}},
			{ID: "ship", Type: "task", DependsOn: []string{"charge"}, Config: workflow.StepConfig{Action: "ship_order"}},
			{ID: "notify", Type: "task", DependsOn: []string{"ship"}, Config: workflow.StepConfig{Action: "send_notification"}},
		},
	}
}
