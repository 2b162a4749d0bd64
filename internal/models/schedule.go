// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package models

// Schedule is the aggregated match schedule across every division of the
// tournament, persisted verbatim from the Tournament Manager API so that
// downstream consumers see the same shape the API produced.
type Schedule struct {
	Divisions []Division `json:"divisions"`
}

// Division holds one division's identity and its full match list.
type Division struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Matches []Match `json:"matches"`
}

// Match mirrors the Tournament Manager match record. Only the fields the
// scheduler reads are typed; everything else passes through untouched on
// the fetch path.
type Match struct {
	MatchInfo MatchInfo `json:"matchInfo"`
}

// MatchInfo carries the match identity tuple and the alliance rosters.
type MatchInfo struct {
	MatchTuple MatchTuple `json:"matchTuple"`
	Alliances  []Alliance `json:"alliances"`
}

// MatchTuple identifies a match within the tournament.
type MatchTuple struct {
	Division int    `json:"division"`
	Round    string `json:"round"`
	Match    int    `json:"match"`
}

// Alliance is one side of a match.
type Alliance struct {
	Teams []Team `json:"teams"`
}

// Team is a single team entry on an alliance.
type Team struct {
	Number string `json:"number"`
}

// Number returns the match number from the nested tuple, zero when the
// record carries no tuple.
func (m Match) Number() int {
	return m.MatchInfo.MatchTuple.Match
}

// TeamNumbers returns every team number across all alliances in roster
// order. Empty entries are preserved as the API sent them.
func (m Match) TeamNumbers() []string {
	var numbers []string
	for _, alliance := range m.MatchInfo.Alliances {
		for _, team := range alliance.Teams {
			numbers = append(numbers, team.Number)
		}
	}
	return numbers
}
