// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

/*
Package metrics provides Prometheus metrics collection and export.

Metrics cover the full path an event takes through the system:

  - Event queue throughput and processing latency
  - Field state transitions
  - Action dispatch outcomes per device type
  - Tournament server connection health and reconnects
  - Schedule fetch passes and scheduler scans
  - Control API latency and throughput

All metrics are registered with the default Prometheus registry via
promauto and exported on the control API's /metrics endpoint. Record
helpers exist for every metric so call sites never touch label plumbing
directly.
*/
package metrics
