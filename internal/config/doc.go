// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

/*
Package config loads and validates the two configuration layers of a
Stagehand deployment.

The application configuration (Config) is deploy-time: the data
directory, Tournament Manager credentials and endpoints, the control
API listener, and logging. It is loaded once at startup through koanf
from built-in defaults, an optional JSON file, and environment
variables, highest priority last:

	cfg, err := config.Load()

The show configuration (ShowConfig) is show-time: device endpoints,
pause flags, camera and room wiring, and scheduler settings. It lives
as config.json in the data directory next to the rest of the show
state, so operators can edit it between matches:

	show := config.LoadShow(files)

Missing show settings fall back to DefaultShow. Pause flips made
through the control API are written back with SaveShow.
*/
package config
