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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/internal/engine"
	"github.com/sablerun/sable/internal/store"
)

// RunsHandler handles run-related API requests.
type RunsHandler struct {
	engine *engine.Engine
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(e *engine.Engine) *RunsHandler {
	return &RunsHandler{engine: e}
}

// RegisterRoutes registers run API routes on the router.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/workflows/{id}/runs", h.handleCreate)
	mux.HandleFunc("GET /v1/runs", h.handleList)
	mux.HandleFunc("GET /v1/runs/{id}", h.handleGet)
}

// CreateRunRequest is the request body for starting a run. The body may be
// empty for runs without a business object.
type CreateRunRequest struct {
	BusinessObjectID string `json:"business_object_id,omitempty"`
}

// RunResponse is a run with its ordered steps attached.
type RunResponse struct {
	*store.Run
	Steps []*store.Step `json:"steps"`
}

// handleCreate handles POST /v1/workflows/{id}/runs. The run is accepted
// and executed in the background; the response reflects its initial state.
func (h *RunsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	run, steps, err := h.engine.StartRun(r.Context(), r.PathValue("id"), req.BusinessObjectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, RunResponse{Run: run, Steps: steps})
}

// handleList handles GET /v1/runs.
func (h *RunsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.engine.ListRuns(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGet handles GET /v1/runs/{id}.
func (h *RunsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, steps, err := h.engine.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RunResponse{Run: run, Steps: steps})
}
