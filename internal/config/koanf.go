// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fedmf/config.yaml",
	"/etc/fedmf/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Dim:         10,
			JitterScale: 0.01,
			Scope:       "global",
		},
		Training: TrainingConfig{
			LearningRate:   0.01,
			Regularization: 0.1,
			Iterations:     10,
		},
		Privacy: PrivacyConfig{
			Enabled:       true,
			Epsilon:       1.0,
			Sensitivity:   0.36,
			Noise:         "gaussian",
			Delta:         1e-5,
			ClipThreshold: 1.0,
		},
		Aggregation: AggregationConfig{
			LearningRate:  1.0,
			Epsilon:       1.0,
			Sensitivity:   0.36,
			Noise:         "gaussian",
			Delta:         1e-5,
			ClipThreshold: 0.5,
			MaxGrowth:     1024,
		},
		Recommend: RecommendConfig{
			RecentBucket:   12,
			AlphaLong:      0.7,
			BetaRecent:     0.3,
			ExcludeWatched: true,
			TopN:           6,
		},
		Storage: StorageConfig{
			Path:       "/data/fedmf",
			SyncWrites: true,
		},
		Round: RoundConfig{
			Topic:       "fedmf.deltas",
			Parallelism: 8,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8471,
			Timeout:         30 * time.Second,
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Client: ClientConfig{
			BaseURL:           "http://127.0.0.1:8471",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without reading any file or env var.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// FEDMF_MODEL_DIM -> model.dim
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while YAML already yields slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"fedmf_model_dim":    "model.dim",
	"fedmf_jitter_scale": "model.jitter_scale",
	"fedmf_seed":         "model.seed",
	"fedmf_model_scope":  "model.scope",

	"fedmf_train_learning_rate":  "training.learning_rate",
	"fedmf_train_regularization": "training.regularization",
	"fedmf_train_iterations":     "training.iterations",

	"fedmf_privacy_enabled":        "privacy.enabled",
	"fedmf_privacy_epsilon":        "privacy.epsilon",
	"fedmf_privacy_sensitivity":    "privacy.sensitivity",
	"fedmf_privacy_noise":          "privacy.noise",
	"fedmf_privacy_delta":          "privacy.delta",
	"fedmf_privacy_clip_enabled":   "privacy.clip_enabled",
	"fedmf_privacy_clip_threshold": "privacy.clip_threshold",

	"fedmf_agg_learning_rate":  "aggregation.learning_rate",
	"fedmf_agg_noise_enabled":  "aggregation.noise_enabled",
	"fedmf_agg_epsilon":        "aggregation.epsilon",
	"fedmf_agg_sensitivity":    "aggregation.sensitivity",
	"fedmf_agg_noise":          "aggregation.noise",
	"fedmf_agg_delta":          "aggregation.delta",
	"fedmf_agg_clip_enabled":   "aggregation.clip_enabled",
	"fedmf_agg_clip_threshold": "aggregation.clip_threshold",
	"fedmf_agg_max_growth":     "aggregation.max_growth",

	"fedmf_recent_bucket":   "recommend.recent_bucket",
	"fedmf_alpha_long":      "recommend.alpha_long",
	"fedmf_beta_recent":     "recommend.beta_recent",
	"fedmf_exclude_watched": "recommend.exclude_watched",
	"fedmf_top_n":           "recommend.top_n",

	"fedmf_storage_path":        "storage.path",
	"fedmf_storage_in_memory":   "storage.in_memory",
	"fedmf_storage_sync_writes": "storage.sync_writes",

	"fedmf_round_topic":               "round.topic",
	"fedmf_round_auto_close_interval": "round.auto_close_interval",
	"fedmf_round_parallelism":         "round.parallelism",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",

	"fedmf_client_base_url":            "client.base_url",
	"fedmf_client_participant_id":      "client.participant_id",
	"fedmf_client_timeout":             "client.timeout",
	"fedmf_client_requests_per_second": "client.requests_per_second",
	"fedmf_client_burst":               "client.burst",
	"fedmf_client_breaker_failures":    "client.breaker_failures",
	"fedmf_client_breaker_timeout":     "client.breaker_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - FEDMF_MODEL_DIM -> model.dim
//   - FEDMF_AGG_NOISE_ENABLED -> aggregation.noise_enabled
//   - HTTP_PORT -> server.port
//
// Unmapped keys return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
