// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/ranking"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/logging"
)

// Config holds all FedMF configuration.
//
// Loading order (see LoadWithKoanf):
//  1. Defaults
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables
//
// Config is immutable after loading and safe for concurrent reads.
type Config struct {
	Model       ModelConfig       `koanf:"model"`
	Training    TrainingConfig    `koanf:"training"`
	Privacy     PrivacyConfig     `koanf:"privacy"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Recommend   RecommendConfig   `koanf:"recommend"`
	Storage     StorageConfig     `koanf:"storage"`
	Round       RoundConfig       `koanf:"round"`
	Server      ServerConfig      `koanf:"server"`
	Client      ClientConfig      `koanf:"client"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ModelConfig describes the global model.
type ModelConfig struct {
	Dim         int     `koanf:"dim" validate:"gte=1,lte=1024"`
	JitterScale float64 `koanf:"jitter_scale" validate:"gt=0"`
	Seed        uint64  `koanf:"seed"` // 0 draws random seeds
	Scope       string  `koanf:"scope" validate:"required"`
}

// ServerSeeds returns the coordinator's jitter and noise seeds.
func (c ModelConfig) ServerSeeds() (jitter, noise uint64) {
	return federated.DeriveSeed(c.Seed, "server/jitter"), federated.DeriveSeed(c.Seed, "server/noise")
}

// ParticipantSeeds returns a participant's jitter and noise seeds. Each
// participant id gets its own streams, distinct from the server's.
func (c ModelConfig) ParticipantSeeds(id string) (jitter, noise uint64) {
	return federated.DeriveSeed(c.Seed, "participant/"+id+"/jitter"),
		federated.DeriveSeed(c.Seed, "participant/"+id+"/noise")
}

// TrainingConfig holds the local SGD hyperparameters.
type TrainingConfig struct {
	LearningRate   float64 `koanf:"learning_rate" validate:"gt=0"`
	Regularization float64 `koanf:"regularization" validate:"gte=0"`
	Iterations     int     `koanf:"iterations" validate:"gte=1"`
}

// Params converts to trainer parameters.
func (c TrainingConfig) Params() training.Params {
	return training.Params{
		LearningRate:   c.LearningRate,
		Regularization: c.Regularization,
		Iterations:     c.Iterations,
	}
}

// PrivacyConfig controls client-side clipping and noise of participant deltas.
type PrivacyConfig struct {
	Enabled       bool    `koanf:"enabled"`
	Epsilon       float64 `koanf:"epsilon" validate:"gt=0"`
	Sensitivity   float64 `koanf:"sensitivity" validate:"gt=0"`
	Noise         string  `koanf:"noise" validate:"oneof=gaussian laplace"`
	Delta         float64 `koanf:"delta" validate:"gt=0,lt=1"`
	ClipEnabled   bool    `koanf:"clip_enabled"`
	ClipThreshold float64 `koanf:"clip_threshold" validate:"gt=0"`
}

// Params converts to mechanism parameters. Disabled layers stay nil.
func (c PrivacyConfig) Params() privacy.Params {
	return privacyParams(c.Enabled, c.Epsilon, c.Sensitivity, c.Noise, c.Delta, c.ClipEnabled, c.ClipThreshold)
}

// AggregationConfig controls the server-side merge of each round.
type AggregationConfig struct {
	LearningRate  float64 `koanf:"learning_rate" validate:"gt=0"`
	NoiseEnabled  bool    `koanf:"noise_enabled"`
	Epsilon       float64 `koanf:"epsilon" validate:"gt=0"`
	Sensitivity   float64 `koanf:"sensitivity" validate:"gt=0"`
	Noise         string  `koanf:"noise" validate:"oneof=gaussian laplace"`
	Delta         float64 `koanf:"delta" validate:"gt=0,lt=1"`
	ClipEnabled   bool    `koanf:"clip_enabled"`
	ClipThreshold float64 `koanf:"clip_threshold" validate:"gt=0"`
	MaxGrowth     int     `koanf:"max_growth" validate:"gte=1"`
}

// Params converts the server-side privacy layer to mechanism parameters.
func (c AggregationConfig) Params() privacy.Params {
	return privacyParams(c.NoiseEnabled, c.Epsilon, c.Sensitivity, c.Noise, c.Delta, c.ClipEnabled, c.ClipThreshold)
}

func privacyParams(noise bool, epsilon, sensitivity float64, kind string, delta float64, clip bool, threshold float64) privacy.Params {
	var p privacy.Params
	if noise {
		p.Epsilon = privacy.Float(epsilon)
		p.Sensitivity = sensitivity
		p.Kind = privacy.NoiseKind(kind)
		p.Delta = delta
	}
	if clip {
		p.ClipThreshold = privacy.Float(threshold)
	}
	return p
}

// RecommendConfig holds the hybrid ranking options.
type RecommendConfig struct {
	RecentBucket   int     `koanf:"recent_bucket"`
	AlphaLong      float64 `koanf:"alpha_long" validate:"gte=0"`
	BetaRecent     float64 `koanf:"beta_recent" validate:"gte=0"`
	ExcludeWatched bool    `koanf:"exclude_watched"`
	TopN           int     `koanf:"top_n" validate:"gte=0"`
}

// Options converts to ranking options.
func (c RecommendConfig) Options() ranking.Options {
	return ranking.Options{
		RecentBucket:   c.RecentBucket,
		AlphaLong:      c.AlphaLong,
		BetaRecent:     c.BetaRecent,
		ExcludeWatched: c.ExcludeWatched,
		TopN:           c.TopN,
	}
}

// StorageConfig configures the Badger factor store.
type StorageConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// Options converts to store options.
func (c StorageConfig) Options() storage.Options {
	return storage.Options{Path: c.Path, InMemory: c.InMemory, SyncWrites: c.SyncWrites}
}

// RoundConfig configures round coordination.
type RoundConfig struct {
	Topic             string        `koanf:"topic" validate:"required"`
	AutoCloseInterval time.Duration `koanf:"auto_close_interval"` // 0 disables the scheduler
	Parallelism       int           `koanf:"parallelism" validate:"gte=0"`
}

// ServerConfig configures the coordinator HTTP API.
type ServerConfig struct {
	Host              string        `koanf:"host" validate:"required"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ClientConfig configures the participant HTTP client.
type ClientConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required"`
	ParticipantID     string        `koanf:"participant_id"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`
	BreakerFailures   uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ToLogging converts to the logging package configuration.
func (c LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// String summarizes the settings worth logging at startup.
func (c *Config) String() string {
	return fmt.Sprintf("dim=%d scope=%s storage=%s client_noise=%t server_noise=%t addr=%s",
		c.Model.Dim, c.Model.Scope, c.storageLabel(), c.Privacy.Enabled, c.Aggregation.NoiseEnabled, c.Server.Addr())
}

func (c *Config) storageLabel() string {
	if c.Storage.InMemory {
		return "memory"
	}
	return c.Storage.Path
}
