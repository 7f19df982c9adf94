// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all runtime settings. Values are resolved in order:
// defaults, optional YAML file, then VULNFACTS_* environment variables
// (a .env file is loaded first if present).
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Server   ServerConfig   `yaml:"server"`
}

// StoreConfig points at the document store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PipelineConfig tunes the fact pipeline's batching and concurrency.
type PipelineConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Workers     int `yaml:"workers"`
	MaxInFlight int `yaml:"max_in_flight"`
}

// EnrichConfig holds the enrichment merge policy. The zero-score drop
// and the score merge strategy are policy, not correctness, so both are
// overridable here.
type EnrichConfig struct {
	DropZeroScore *bool  `yaml:"drop_zero_score"`
	ScoreMerge    string `yaml:"score_merge"` // "max" (default) or "sum"
	SummaryRows   int    `yaml:"summary_rows"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dropZero := true
	return &Config{
		Store:   StoreConfig{Path: "vulnfacts.db"},
		Logging: LoggingConfig{Level: "info"},
		Pipeline: PipelineConfig{
			BatchSize:   2500,
			Workers:     10,
			MaxInFlight: 20,
		},
		Enrich: EnrichConfig{
			DropZeroScore: &dropZero,
			ScoreMerge:    "max",
			SummaryRows:   10,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment overrides. An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays VULNFACTS_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VULNFACTS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("VULNFACTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VULNFACTS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BatchSize = n
		}
	}
	if v := os.Getenv("VULNFACTS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("VULNFACTS_MAX_IN_FLIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxInFlight = n
		}
	}
	if v := os.Getenv("VULNFACTS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate checks the configuration for values that would break a run.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if cfg.Pipeline.BatchSize < 1 || cfg.Pipeline.BatchSize > 50000 {
		return fmt.Errorf("pipeline.batch_size must be between 1 and 50000: %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.Workers < 1 || cfg.Pipeline.Workers > 64 {
		return fmt.Errorf("pipeline.workers must be between 1 and 64: %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxInFlight < 1 {
		return fmt.Errorf("pipeline.max_in_flight must be at least 1: %d", cfg.Pipeline.MaxInFlight)
	}
	switch cfg.Enrich.ScoreMerge {
	case "max", "sum":
	default:
		return fmt.Errorf("enrich.score_merge must be \"max\" or \"sum\": %q", cfg.Enrich.ScoreMerge)
	}
	if cfg.Enrich.SummaryRows < 0 {
		return fmt.Errorf("enrich.summary_rows must not be negative: %d", cfg.Enrich.SummaryRows)
	}
	return nil
}
