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
	"io"
	"net/http"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/internal/engine"
)

// maxDefinitionBytes bounds how large a submitted definition may be.
const maxDefinitionBytes = 1 << 20

// WorkflowsHandler handles workflow-related API requests.
type WorkflowsHandler struct {
	engine *engine.Engine
}

// NewWorkflowsHandler creates a new workflows handler.
func NewWorkflowsHandler(e *engine.Engine) *WorkflowsHandler {
	return &WorkflowsHandler{engine: e}
}

// RegisterRoutes registers workflow API routes on the router.
func (h *WorkflowsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/workflows", h.handleCreate)
	mux.HandleFunc("GET /v1/workflows", h.handleList)
	mux.HandleFunc("GET /v1/workflows/{id}", h.handleGet)
}

// handleCreate handles POST /v1/workflows. The body is the workflow
// definition document itself.
func (h *WorkflowsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	wf, err := h.engine.CreateWorkflow(r.Context(), body)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, wf)
}

// handleList handles GET /v1/workflows.
func (h *WorkflowsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.engine.ListWorkflows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

// handleGet handles GET /v1/workflows/{id}.
func (h *WorkflowsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, wf)
}
