// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package supervisor assembles the Suture tree that keeps the show
// running through component crashes.
//
// The tree has two layers so a fault in one does not restart the other:
//
//	stagehand (root)
//	 ├── pipeline
//	 │    ├── event-router      (bus consumer feeding the processor)
//	 │    ├── tm-connector      (tournament server websocket)
//	 │    ├── schedule-fetcher  (periodic REST poll)
//	 │    └── match-scheduler   (upcoming-match popups)
//	 └── api
//	      └── control-api       (operator HTTP surface)
//
// Crashed services restart with suture's default failure accounting;
// supervisor events land in the structured log through sutureslog.
package supervisor
