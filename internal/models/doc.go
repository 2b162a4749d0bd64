// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

/*
Package models defines the shared read-side shapes of the show state
files: the aggregated match schedule the fetcher writes and the popups
the scheduler and operators queue.

Schedule types deliberately model only the fields this system reads.
The schedule file itself preserves whatever else the tournament server
returned, so these types must never be used to rewrite it.
*/
package models
