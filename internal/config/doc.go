// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package config loads and validates FedMF configuration.

# Sources

Configuration is layered with koanf, later sources winning:

  - Built-in defaults (defaultConfig)
  - An optional YAML file: CONFIG_PATH, else config.yaml or /etc/fedmf/config.yaml
  - Environment variables, through an explicit name mapping

Environment variables that are not in the mapping are ignored, so unrelated
process environment never leaks into the configuration.

# Sections

  - model: latent dimension, growth jitter, RNG seed, scope name
  - training: local SGD learning rate, regularization, iterations
  - privacy: client-side clipping and Gaussian or Laplace noise
  - aggregation: server learning rate plus its own clipping and noise
  - recommend: recent bucket, blend weights, exclusion, result count
  - storage: Badger directory, in-memory mode, sync writes
  - round: bus topic, auto-close interval, simulation parallelism
  - server: HTTP address, timeout, rate limit, CORS
  - client: coordinator URL, rate limit, circuit breaker
  - logging: level, format, caller

Client-side and server-side noise toggle independently. Each section converts
to the parameter type of the package that consumes it (PrivacyConfig.Params,
RecommendConfig.Options, TrainingConfig.Params, StorageConfig.Options).

# Example

	FEDMF_MODEL_DIM=16 FEDMF_AGG_NOISE_ENABLED=true HTTP_PORT=9000 fedmf-server
*/
package config
