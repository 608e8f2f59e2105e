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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_runs_started_total",
			Help: "Total workflow runs submitted to the supervisor",
		},
	)

	runsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_runs_finished_total",
			Help: "Total workflow runs reaching a terminal status",
		},
		[]string{"status"},
	)

	stepAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sable_step_attempts_total",
			Help: "Total step attempts by outcome (completed, retry, failed)",
		},
		[]string{"outcome"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sable_active_workers",
			Help: "Number of run workers currently executing",
		},
	)

	recoveredRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sable_recovered_runs_total",
			Help: "Total in-flight runs resubmitted by startup recovery",
		},
	)
)
