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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "parseLevel(%q)", tt.in)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SABLE_DEBUG", "")
	t.Setenv("SABLE_LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")

	cfg := FromEnv()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.False(t, cfg.AddSource)
}

func TestFromEnvDebugTakesPrecedence(t *testing.T) {
	t.Setenv("SABLE_DEBUG", "1")
	t.Setenv("SABLE_LOG_LEVEL", "error")

	cfg := FromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.AddSource)
}

func TestNewEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithRunContext(logger, "run-1", "order_flow").Info("starting run execution")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "starting run execution", entry["msg"])
	assert.Equal(t, "run-1", entry[RunIDKey])
	assert.Equal(t, "order_flow", entry[WorkflowKey])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "error", Format: FormatJSON, Output: &buf})

	logger.Info("dropped")
	assert.Zero(t, buf.Len(), "info line emitted at error level")

	logger.Error("kept")
	assert.NotZero(t, buf.Len())
}

func TestWithStepContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithStepContext(logger, "run-1", "charge").Info("step completed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry[RunIDKey])
	assert.Equal(t, "charge", entry[StepIDKey])
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithComponent(logger, "daemon").Info("daemon started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "daemon", entry["component"])
}
