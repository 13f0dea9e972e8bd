// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package supervisor provides process supervision for the Civicmap server using suture v4.

The supervisor tree organizes long-running services into three layers:

	RootSupervisor ("civicmap")
	├── DataSupervisor ("data-layer")
	│   └── RetentionService (if EVENTS_PERSIST and EVENTS_RETENTION > 0)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── EmbeddedNATSService (if NATS_EMBEDDED, build tag: nats)
	│   └── audit.Recorder
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently, so a recorder crash does not
restart the HTTP server. Supervisor events are logged through sutureslog
and the zerolog slog bridge.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.Timeout,
	})
	if err != nil {
	    return err
	}
	tree.Add(supervisor.LayerMessaging, recorder)
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

# Configuration

TreeConfig zero values fall back to suture's defaults: a failure threshold
of 5, a decay of 30 seconds, a 15 second backoff and a 10 second shutdown
timeout.
*/
package supervisor
