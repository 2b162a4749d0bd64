// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/logging"
)

var roundPrefixes = map[string]string{
	"QUAL":  "Q",
	"TOP_N": "F",
}

// FormatMatchName renders the display name for a match payload value.
// Strings pass through as-is. Tuple objects map their round onto a short
// prefix, QUAL to Q and TOP_N to F matched case-insensitively, any other
// round string falls back to its first letter uppercased, followed by the
// match number. An empty result means no name could be determined.
func FormatMatchName(match any) string {
	switch m := match.(type) {
	case nil:
		return ""
	case string:
		return m
	case map[string]any:
		return tupleName(m)
	default:
		return ""
	}
}

func tupleName(m map[string]any) string {
	roundVal, ok := m["round"]
	if !ok || roundVal == nil {
		return ""
	}

	round, ok := roundVal.(string)
	if !ok || round == "" {
		logging.Warn().Interface("round", roundVal).Msg("Could not find a prefix for round")
		return ""
	}

	prefix, ok := roundPrefixes[strings.ToUpper(round)]
	if !ok {
		logging.Warn().Str("round", round).Msg("Could not find a prefix for round")
		prefix = strings.ToUpper(string([]rune(round)[0]))
	}

	return prefix + matchNumber(m["match"])
}

func matchNumber(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		if n == math.Trunc(n) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprintf("%v", n)
	}
}
