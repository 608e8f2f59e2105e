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

package workflow

import "github.com/sablerun/sable/pkg/errors"

// ErrCycle is returned by Plan when the dependency graph contains a cycle
// and no valid execution order exists.
var ErrCycle = errors.New("circular dependency detected among workflow steps")

// Plan returns the definition's steps reordered so that every step's
// dependencies precede it, using Kahn's algorithm with a stable tie-break:
// among the currently ready steps, the one earliest in the input list is
// emitted first. An input that is already topologically sorted is returned
// in its original order.
//
// Returns ErrCycle when some step can never become ready.
func (d *Definition) Plan() ([]StepDefinition, error) {
	n := len(d.Steps)

	inDegree := make(map[string]int, n)
	dependents := make(map[string][]string, n)
	for _, step := range d.Steps {
		inDegree[step.ID] = len(step.DependsOn)
	}
	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	emitted := make(map[string]bool, n)
	ordered := make([]StepDefinition, 0, n)

	for len(ordered) < n {
		// Earliest ready step in input order. The step count is small
		// enough that a linear scan beats maintaining a heap.
		next := -1
		for i, step := range d.Steps {
			if !emitted[step.ID] && inDegree[step.ID] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, ErrCycle
		}

		step := d.Steps[next]
		emitted[step.ID] = true
		ordered = append(ordered, step)
		for _, dep := range dependents[step.ID] {
			inDegree[dep]--
		}
	}

	return ordered, nil
}
