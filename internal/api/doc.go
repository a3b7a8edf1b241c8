// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package api exposes the round coordinator over HTTP using the Chi router.

# Endpoints

	GET  /api/v1/health/live               process is up
	GET  /api/v1/health/ready              model initialized and bus running
	GET  /metrics                          Prometheus exposition
	POST /api/v1/model                     initialize the global model
	GET  /api/v1/model                     current model snapshot
	POST /api/v1/items                     register a title (server-side growth)
	POST /api/v1/interactions              apply an out-of-round interaction delta
	GET  /api/v1/rounds                    list open rounds
	POST /api/v1/rounds                    open a round
	POST /api/v1/rounds/{roundID}/deltas   submit a participant delta
	POST /api/v1/rounds/{roundID}/close    aggregate the round once

Every response uses the models.APIResponse envelope. Sentinel errors from the
federated packages map to status codes in respondServiceError.

# Middleware

Applied to every route, in order: request id with logging context, real IP,
panic recovery, CORS (go-chi/cors) and Prometheus request metrics. The
/api/v1 routes other than health are rate limited per client IP with
go-chi/httprate.
*/
package api
