// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package tm speaks the Tournament Manager API: an OAuth2
// client-credentials token endpoint, HMAC-signed REST queries for
// divisions and match schedules, and the persistent field-set websocket
// stream that feeds the event pipeline.
//
// All outbound requests carry the same three headers. Authorization holds
// the cached bearer token, x-tm-date the request timestamp, and
// x-tm-signature an HMAC-SHA256 over the canonical request form keyed by
// the tournament API key. See Signer for the canonical form.
package tm
