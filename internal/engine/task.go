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
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sablerun/sable/pkg/workflow"
)

// TaskError represents a simulated task failure. The executor treats it as
// an ordinary failed attempt subject to retry accounting.
type TaskError struct {
	Message string
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return e.Message
}

// TaskResult is the opaque payload recorded for a successful attempt.
type TaskResult struct {
	Action   string  `json:"action"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
}

// SleepFunc suspends the caller for the given duration, or returns early
// with the context's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TaskRunner executes a single simulated task: sleep for the configured
// duration, then succeed or fail based on the configured probability.
// Both the sleep and the random source are injectable for tests.
type TaskRunner struct {
	sleep  SleepFunc
	random func() float64
}

// TaskOption configures a TaskRunner.
type TaskOption func(*TaskRunner)

// WithSleep replaces the real sleep. Tests use this to run instantly.
func WithSleep(fn SleepFunc) TaskOption {
	return func(r *TaskRunner) { r.sleep = fn }
}

// WithRandom replaces the pseudo-random source. The function must return
// values in [0.0, 1.0).
func WithRandom(fn func() float64) TaskOption {
	return func(r *TaskRunner) { r.random = fn }
}

// NewTaskRunner creates a TaskRunner with a real clock and random source.
func NewTaskRunner(opts ...TaskOption) *TaskRunner {
	r := &TaskRunner{
		sleep:  sleepWithContext,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs one simulated task. A draw below FailProbability fails the
// task, so probability 0.0 always succeeds and 1.0 always fails.
func (r *TaskRunner) Execute(ctx context.Context, cfg workflow.StepConfig) (*TaskResult, error) {
	duration := time.Duration(cfg.DurationSeconds * float64(time.Second))
	if err := r.sleep(ctx, duration); err != nil {
		return nil, err
	}

	if r.random() < cfg.FailProbability {
		return nil, &TaskError{
			Message: fmt.Sprintf("task %q failed (fail_probability=%g)", cfg.Action, cfg.FailProbability),
		}
	}

	return &TaskResult{
		Action:   cfg.Action,
		Status:   "success",
		Duration: cfg.DurationSeconds,
	}, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
