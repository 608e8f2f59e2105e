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
	stderrors "errors"
	"net/http"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/pkg/errors"
	"github.com/sablerun/sable/pkg/workflow"
)

// writeDomainError maps domain errors to HTTP status codes: missing
// resources to 404, invalid input (including cyclic definitions) to 400,
// everything else to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var notFound *errors.NotFoundError
	if stderrors.As(err, &notFound) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	var invalid *errors.ValidationError
	if stderrors.As(err, &invalid) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if stderrors.Is(err, workflow.ErrCycle) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputil.WriteError(w, http.StatusInternalServerError, err.Error())
}
