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

// Package workflow defines the workflow definition document and the
// topological planner that orders its steps for execution.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sablerun/sable/pkg/errors"
)

// Definition represents a JSON workflow definition: a named directed
// acyclic graph of steps. Definitions are immutable once stored.
type Definition struct {
	// Name is the workflow identifier
	Name string `json:"name"`

	// Steps are the executable units of the workflow, in the order the
	// caller supplied them. Execution order is assigned by the planner.
	Steps []StepDefinition `json:"steps"`
}

// StepDefinition represents a single step in a workflow definition.
type StepDefinition struct {
	// ID is the unique step identifier within this workflow
	ID string `json:"id"`

	// Type is a free-form tag describing the step; it is not enumerated.
	Type string `json:"type"`

	// DependsOn lists step IDs that must complete before this step runs.
	// Forward references are allowed.
	DependsOn []string `json:"depends_on"`

	// Config holds the simulated task parameters and optional action.
	Config StepConfig `json:"config"`
}

// StepConfig holds per-step execution parameters.
type StepConfig struct {
	// Action names a registered business-logic function dispatched inside
	// the step's atomic commit. Unknown names are no-ops at dispatch time.
	Action string `json:"action,omitempty"`

	// DurationSeconds is how long the simulated task sleeps.
	DurationSeconds float64 `json:"duration_seconds"`

	// FailProbability is the chance in [0, 1] that the task fails.
	FailProbability float64 `json:"fail_probability"`

	// MaxRetries is how many additional attempts a failed step gets.
	MaxRetries int `json:"max_retries"`
}

// UnmarshalJSON applies the documented defaults for absent fields:
// duration_seconds=1.0, fail_probability=0.0, max_retries=0.
func (c *StepConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action          string   `json:"action"`
		DurationSeconds *float64 `json:"duration_seconds"`
		FailProbability *float64 `json:"fail_probability"`
		MaxRetries      *int     `json:"max_retries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Action = raw.Action
	c.DurationSeconds = 1.0
	if raw.DurationSeconds != nil {
		c.DurationSeconds = *raw.DurationSeconds
	}
	c.FailProbability = 0.0
	if raw.FailProbability != nil {
		c.FailProbability = *raw.FailProbability
	}
	c.MaxRetries = 0
	if raw.MaxRetries != nil {
		c.MaxRetries = *raw.MaxRetries
	}
	return nil
}

// ParseDefinition parses a JSON workflow definition and validates it.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "parsing workflow definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural constraints on the definition: a non-empty
// name and step list, unique step IDs, dependency references that resolve
// within the workflow, and in-range numeric configuration.
//
// Cycle detection is the planner's job, not Validate's; a definition can
// pass Validate and still fail to plan.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "workflow name is required"}
	}
	if len(d.Steps) == 0 {
		return &errors.ValidationError{Field: "steps", Message: "workflow must have at least one step"}
	}

	ids := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if step.ID == "" {
			return &errors.ValidationError{Field: "steps.id", Message: "step id is required"}
		}
		if _, dup := ids[step.ID]; dup {
			return &errors.ValidationError{
				Field:   "steps.id",
				Message: fmt.Sprintf("duplicate step id: %q", step.ID),
			}
		}
		ids[step.ID] = struct{}{}
	}

	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := ids[dep]; !ok {
				return &errors.ValidationError{
					Field:   "steps.depends_on",
					Message: fmt.Sprintf("step %q depends on %q which is not defined in this workflow", step.ID, dep),
				}
			}
		}

		cfg := step.Config
		if cfg.FailProbability < 0.0 || cfg.FailProbability > 1.0 {
			return &errors.ValidationError{
				Field:   "steps.config.fail_probability",
				Message: fmt.Sprintf("step %q: fail_probability must be in [0.0, 1.0], got %g", step.ID, cfg.FailProbability),
			}
		}
		if cfg.DurationSeconds < 0 {
			return &errors.ValidationError{
				Field:   "steps.config.duration_seconds",
				Message: fmt.Sprintf("step %q: duration_seconds must be >= 0, got %g", step.ID, cfg.DurationSeconds),
			}
		}
		if cfg.MaxRetries < 0 {
			return &errors.ValidationError{
				Field:   "steps.config.max_retries",
				Message: fmt.Sprintf("step %q: max_retries must be >= 0, got %d", step.ID, cfg.MaxRetries),
			}
		}
	}

	return nil
}
