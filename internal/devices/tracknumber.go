// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package devices

import (
	"regexp"
	"strconv"
)

var digitRun = regexp.MustCompile(`\d+`)

// TrackNumber extracts the match number from a formatted match name, for
// example "Q12" yields 12. Names with several digit runs, such as
// elimination rounds like "R16 3", yield the last run.
func TrackNumber(matchName string) (int, bool) {
	runs := digitRun.FindAllString(matchName, -1)
	if len(runs) == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}
