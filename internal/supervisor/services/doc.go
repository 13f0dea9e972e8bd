// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package services provides suture.Service wrappers for server components.

  - HTTPServerService translates ListenAndServe/Shutdown into a context-aware Serve.
  - EmbeddedNATSService watches an embedded NATS server and stops it with the tree.
  - RetentionService prunes stored auth events on an interval.

audit.Recorder already implements suture.Service and needs no wrapper.

Every Serve returns ctx.Err() on cancellation so suture treats it as a clean
stop, and a non-context error when the component fails so it is restarted.
*/
package services
