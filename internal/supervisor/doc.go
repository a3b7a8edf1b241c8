// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package supervisor runs the coordinator's long-lived services under a suture
supervisor tree.

Layout:

	fedmf (root)
	├── data-layer        delta collector
	├── federation-layer  round scheduler
	└── api-layer         HTTP server

Each layer restarts its services independently with exponential backoff.
Supervisor events are logged through sutureslog, so the tree needs a
*slog.Logger; logging.NewSlogLogger bridges the process zerolog logger.

Usage:

	tree, err := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddDataService(coord.Collector())
	tree.AddFederationService(services.NewRoundSchedulerService(coord, interval, logger))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	return tree.Serve(ctx)

See the services subpackage for the wrappers.
*/
package supervisor
