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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sablerun/sable/internal/engine"
	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/internal/store/sqlite"
)

const orderFlowDefinition = `{
	"name": "order_flow",
	"steps": [
		{"id": "validate", "type": "task", "config": {"action": "validate_order", "duration_seconds": 0}},
		{"id": "charge", "type": "task", "depends_on": ["validate"], "config": {"action": "charge_payment", "duration_seconds": 0}},
		{"id": "ship", "type": "task", "depends_on": ["charge"], "config": {"action": "ship_order", "duration_seconds": 0}}
	]
}`

type testServer struct {
	handler http.Handler
	engine  *engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	backend, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	instant := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	eng := engine.New(backend, logger,
		engine.WithTaskRunner(engine.NewTaskRunner(engine.WithSleep(instant))))

	router := NewRouter(RouterConfig{Version: "test"})
	NewWorkflowsHandler(eng).RegisterRoutes(router.Mux())
	NewRunsHandler(eng).RegisterRoutes(router.Mux())
	NewOrdersHandler(eng).RegisterRoutes(router.Mux())
	NewSnapshotHandler(backend).RegisterRoutes(router.Mux())

	return &testServer{handler: router, engine: eng}
}

func (s *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateWorkflowEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/workflows", orderFlowDefinition)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/workflows = %d, body %s", w.Code, w.Body.String())
	}

	wf := decode[store.Workflow](t, w)
	if wf.ID == "" {
		t.Error("created workflow has no id")
	}
	if wf.Name != "order_flow" {
		t.Errorf("workflow name = %q, want order_flow", wf.Name)
	}

	got := s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID, "")
	if got.Code != http.StatusOK {
		t.Fatalf("GET /v1/workflows/{id} = %d", got.Code)
	}

	list := s.do(t, http.MethodGet, "/v1/workflows", "")
	if list.Code != http.StatusOK {
		t.Fatalf("GET /v1/workflows = %d", list.Code)
	}
	listBody := decode[map[string]any](t, list)
	if listBody["count"].(float64) != 1 {
		t.Errorf("workflow count = %v, want 1", listBody["count"])
	}
}

func TestCreateWorkflowRejectsInvalidDefinitions(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{not json`},
		{name: "missing name", body: `{"steps":[{"id":"a","type":"task"}]}`},
		{name: "no steps", body: `{"name":"empty","steps":[]}`},
		{name: "unknown dependency", body: `{"name":"w","steps":[{"id":"a","type":"task","depends_on":["ghost"]}]}`},
		{name: "cycle", body: `{"name":"w","steps":[{"id":"a","type":"task","depends_on":["b"]},{"id":"b","type":"task","depends_on":["a"]}]}`},
		{name: "bad probability", body: `{"name":"w","steps":[{"id":"a","type":"task","config":{"fail_probability":2}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/workflows", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("POST /v1/workflows = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/workflows/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /v1/workflows/ghost = %d, want 404", w.Code)
	}
}

func TestRunEndToEndThroughAPI(t *testing.T) {
	s := newTestServer(t)

	wf := decode[store.Workflow](t, s.do(t, http.MethodPost, "/v1/workflows", orderFlowDefinition))

	orderResp := s.do(t, http.MethodPost, "/v1/orders", `{"amount": 42.5}`)
	if orderResp.Code != http.StatusCreated {
		t.Fatalf("POST /v1/orders = %d, body %s", orderResp.Code, orderResp.Body.String())
	}
	order := decode[store.Order](t, orderResp)
	if order.Status != store.OrderStatusPending {
		t.Fatalf("new order status = %q, want pending", order.Status)
	}

	runResp := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/runs",
		`{"business_object_id": "`+order.ID+`"}`)
	if runResp.Code != http.StatusAccepted {
		t.Fatalf("POST runs = %d, body %s", runResp.Code, runResp.Body.String())
	}
	accepted := decode[RunResponse](t, runResp)
	if len(accepted.Steps) != 3 {
		t.Fatalf("accepted run has %d steps, want 3", len(accepted.Steps))
	}

	s.engine.Wait()

	final := decode[RunResponse](t, s.do(t, http.MethodGet, "/v1/runs/"+accepted.ID, ""))
	if final.Status != store.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed", final.Status)
	}
	if final.WorkflowName != "order_flow" {
		t.Errorf("workflow_name = %q, want order_flow", final.WorkflowName)
	}
	for _, step := range final.Steps {
		if step.Status != store.StepStatusCompleted {
			t.Errorf("step %q status = %q, want completed", step.StepID, step.Status)
		}
	}

	shipped := decode[store.Order](t, s.do(t, http.MethodGet, "/v1/orders/"+order.ID, ""))
	if shipped.Status != store.OrderStatusShipped {
		t.Errorf("order status = %q, want shipped", shipped.Status)
	}

	list := decode[map[string]any](t, s.do(t, http.MethodGet, "/v1/runs", ""))
	if list["count"].(float64) != 1 {
		t.Errorf("run count = %v, want 1", list["count"])
	}
}

func TestStartRunErrors(t *testing.T) {
	s := newTestServer(t)

	wf := decode[store.Workflow](t, s.do(t, http.MethodPost, "/v1/workflows", orderFlowDefinition))

	if w := s.do(t, http.MethodPost, "/v1/workflows/ghost/runs", ""); w.Code != http.StatusNotFound {
		t.Errorf("POST runs on missing workflow = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/runs", `{"business_object_id":"ghost"}`); w.Code != http.StatusNotFound {
		t.Errorf("POST runs with missing order = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/runs", `{broken`); w.Code != http.StatusBadRequest {
		t.Errorf("POST runs with broken body = %d, want 400", w.Code)
	}

	s.engine.Wait()
}

func TestOrderEndpointErrors(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodPost, "/v1/orders", `{"amount": 0}`); w.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/orders amount=0 = %d, want 400", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/orders", `{"amount": -3}`); w.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/orders amount<0 = %d, want 400", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/orders", `nonsense`); w.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/orders bad body = %d, want 400", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/orders/ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /v1/orders/ghost = %d, want 404", w.Code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	s := newTestServer(t)

	decode[store.Workflow](t, s.do(t, http.MethodPost, "/v1/workflows", orderFlowDefinition))

	w := s.do(t, http.MethodGet, "/v1/db/snapshot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/db/snapshot = %d", w.Code)
	}
	dump := decode[map[string]store.TableDump](t, w)
	for _, table := range []string{"workflows", "runs", "steps", "step_results", "business_objects"} {
		if _, ok := dump[table]; !ok {
			t.Errorf("snapshot missing table %q", table)
		}
	}

	if w := s.do(t, http.MethodGet, "/v1/db/snapshot?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET snapshot with bad limit = %d, want 400", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/db/snapshot?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET snapshot with zero limit = %d, want 400", w.Code)
	}
}

func TestHealthAndVersionEndpoints(t *testing.T) {
	s := newTestServer(t)

	health := s.do(t, http.MethodGet, "/v1/health", "")
	if health.Code != http.StatusOK {
		t.Errorf("GET /v1/health = %d", health.Code)
	}

	version := decode[map[string]string](t, s.do(t, http.MethodGet, "/v1/version", ""))
	if version["version"] != "test" {
		t.Errorf("version = %q, want test", version["version"])
	}

	root := s.do(t, http.MethodGet, "/", "")
	if root.Code != http.StatusOK {
		t.Errorf("GET / = %d", root.Code)
	}
}

func TestRateLimiterThrottlesMutations(t *testing.T) {
	backendPath := filepath.Join(t.TempDir(), "test.db")
	backend, err := sqlite.New(sqlite.Config{Path: backendPath})
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(backend, logger)

	router := NewRouter(RouterConfig{Version: "test", RateLimit: 1, RateBurst: 1})
	NewOrdersHandler(eng).RegisterRoutes(router.Mux())

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(`{"amount":1}`)))
	if first.Code != http.StatusCreated {
		t.Fatalf("first POST = %d, want 201", first.Code)
	}

	throttled := false
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(`{"amount":1}`)))
		if w.Code == http.StatusTooManyRequests {
			throttled = true
			break
		}
	}
	if !throttled {
		t.Error("burst of mutating requests was never throttled")
	}

	// Reads bypass the limiter.
	read := httptest.NewRecorder()
	router.ServeHTTP(read, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if read.Code != http.StatusOK {
		t.Errorf("GET /v1/health while throttled = %d, want 200", read.Code)
	}
}
