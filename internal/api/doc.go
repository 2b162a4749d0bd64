// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package api serves the operator control surface: health probes, event
// injection, popup management, pause control, schedule reset, and the
// Prometheus metrics endpoint.
//
// Reads return the stored resource directly (the popups list, the
// scheduled match, field states); writes that feed the event pipeline
// return 202 and let the processor do the work. Errors share one
// envelope:
//
//	{"error": {"code": "...", "message": "...", "details": {...}}}
//
// The router is plain chi with CORS open to the configured dashboard
// origins and per-group rate limits. There is no authentication; the
// server is expected to sit on the venue network behind the operator's
// reverse proxy.
package api
