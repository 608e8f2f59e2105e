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

// Package config provides daemon configuration loaded from an optional YAML
// file with command-line flag overrides applied by the caller.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the TCP listen address, host:port.
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit is the sustained requests-per-second budget for mutating
	// endpoints; RateBurst is the burst allowance. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// StoreConfig configures the SQLite backend.
type StoreConfig struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string `yaml:"path"`

	// WAL enables write-ahead logging. File databases only.
	WAL bool `yaml:"wal"`
}

// LogConfig configures logging. Empty values defer to the environment.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Store: StoreConfig{
			Path: "sable.db",
			WAL:  true,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unmodified; a named file that does not exist is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_burst must not be negative")
	}
	return nil
}
