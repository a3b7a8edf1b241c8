// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package logging provides the zerolog-based logging used across FedMF.
//
// A global logger is configured once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("addr", addr).Msg("Coordinator listening")
//
// Components receive child loggers (WithComponent) by value. Request-scoped
// logging goes through Ctx, which adds the correlation and request ids the
// HTTP middleware stores in the context.
//
// Two bridges let third-party libraries share the pipeline:
//   - SlogHandler / NewSlogLogger for log/slog consumers such as sutureslog
//   - WatermillAdapter for the watermill delta bus
//
// Environment variables (read by internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller info (default: false)
package logging
