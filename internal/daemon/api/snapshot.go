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
	"net/http"
	"strconv"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/internal/store"
)

// defaultSnapshotLimit is how many rows per table a snapshot returns when
// the caller does not specify a limit.
const defaultSnapshotLimit = 20

// SnapshotHandler exposes a read-only dump of the database for debugging.
type SnapshotHandler struct {
	snapshotter store.Snapshotter
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(s store.Snapshotter) *SnapshotHandler {
	return &SnapshotHandler{snapshotter: s}
}

// RegisterRoutes registers the snapshot route on the router.
func (h *SnapshotHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/db/snapshot", h.handleSnapshot)
}

// handleSnapshot handles GET /v1/db/snapshot. An optional limit query
// parameter caps the rows returned per table.
func (h *SnapshotHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	dump, err := h.snapshotter.Snapshot(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dump)
}
