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
	"net/http"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/internal/engine"
)

// OrdersHandler handles demo order API requests.
type OrdersHandler struct {
	engine *engine.Engine
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(e *engine.Engine) *OrdersHandler {
	return &OrdersHandler{engine: e}
}

// RegisterRoutes registers order API routes on the router.
func (h *OrdersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.handleCreate)
	mux.HandleFunc("GET /v1/orders/{id}", h.handleGet)
}

// CreateOrderRequest is the request body for creating an order.
type CreateOrderRequest struct {
	Amount float64 `json:"amount"`
}

// handleCreate handles POST /v1/orders.
func (h *OrdersHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	order, err := h.engine.CreateOrder(r.Context(), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, order)
}

// handleGet handles GET /v1/orders/{id}.
func (h *OrdersHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, order)
}
