// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package models

// Popup sources and types as written to the popups file.
const (
	PopupTypeToast = "toast"
	PopupTypeModal = "modal"

	PopupSourceScheduler = "match_scheduler"
	PopupSourceManual    = "manual"
)

// Popup is a transient notification addressed to one or more rooms. The
// frontend polls the popups file and renders each entry for Duration
// seconds.
type Popup struct {
	ID       string   `json:"id"`
	RoomIDs  []string `json:"room_ids"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Duration int      `json:"duration"` // seconds
	Type     string   `json:"type"`
	Source   string   `json:"source"`
}
