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
	"log/slog"

	"github.com/sablerun/sable/internal/log"
	"github.com/sablerun/sable/internal/store"
)

// Recover scans the store for runs left in running status by a crashed
// process and resubmits each to the supervisor. It returns once every
// submission is accepted, not once the runs complete. The daemon calls
// this exactly once, before the HTTP listener opens.
func Recover(ctx context.Context, st store.RunStore, sup *Supervisor, logger *slog.Logger) (int, error) {
	running, err := st.ListRunsByStatus(ctx, store.RunStatusRunning)
	if err != nil {
		return 0, err
	}

	if len(running) == 0 {
		logger.Info("recovery: no interrupted runs found")
		return 0, nil
	}

	logger.Info("recovery: resuming interrupted runs", slog.Int("count", len(running)))
	for _, run := range running {
		logger.Info("recovery: resuming run", slog.String(log.RunIDKey, run.ID))
		sup.Start(run.ID)
		recoveredRuns.Inc()
	}
	return len(running), nil
}
