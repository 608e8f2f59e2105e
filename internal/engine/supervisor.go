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
	"sync"

	"github.com/sablerun/sable/internal/log"
)

// Supervisor owns run-worker lifecycle: each submission dispatches one
// background worker per run id, and resubmitting a live run is a no-op.
type Supervisor struct {
	worker *Worker
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor dispatching to the given worker.
func NewSupervisor(worker *Worker, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		worker: worker,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// Start launches a background worker for the run unless one is already
// live for that id. It returns immediately; the worker runs detached from
// the caller's context and terminates only by reaching a terminal run
// status or by process exit.
func (s *Supervisor) Start(runID string) {
	s.mu.Lock()
	if _, live := s.active[runID]; live {
		s.mu.Unlock()
		s.logger.Debug("worker already live for run", slog.String(log.RunIDKey, runID))
		return
	}
	s.active[runID] = struct{}{}
	s.mu.Unlock()

	runsStarted.Inc()
	activeWorkers.Inc()
	s.wg.Add(1)

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, runID)
			s.mu.Unlock()
			activeWorkers.Dec()
			s.wg.Done()
		}()
		s.worker.Run(context.Background(), runID)
	}()
}

// ActiveCount returns the number of live workers.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Wait blocks until every live worker has finished. Used by tests and by
// graceful shutdown; new submissions during the wait are not prevented.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
