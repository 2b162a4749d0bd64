// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package config

import (
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/storage"
)

// Device categories used by pause flags and action routing.
const (
	CategoryAudio    = "audio"
	CategoryVideo    = "video"
	CategoryLighting = "lighting"
)

// ShowConfig is the operator-editable show wiring, persisted as
// config.json in the data directory alongside the other show state. The
// processor and device registry snapshot it at startup; the match
// scheduler re-reads it on every pass, so pause and room edits take
// effect without a restart.
type ShowConfig struct {
	Devices             DevicesConfig     `json:"devices"`
	Paused              map[string]bool   `json:"paused"`
	FieldToCamera       map[string]string `json:"field_to_camera"`
	Rooms               map[string]Room   `json:"rooms"`
	ScheduleLeadMatches int               `json:"schedule_lead_matches"`
	MatchQueuePause     PauseWindow       `json:"match_queue_pause"`
}

// DevicesConfig holds the endpoint of each device controller. An empty
// URL means that controller is absent and its actions are dropped.
type DevicesConfig struct {
	Audio    AudioDevice    `json:"audio"`
	Video    VideoDevice    `json:"video"`
	Lighting LightingDevice `json:"lighting"`
}

// AudioDevice is the audio controller endpoint plus the playback device
// it should drive.
type AudioDevice struct {
	URL      string `json:"url"`
	DeviceID string `json:"device_id"`
}

// VideoDevice is the video switcher endpoint.
type VideoDevice struct {
	URL string `json:"url"`
}

// LightingDevice is the lighting console endpoint.
type LightingDevice struct {
	URL string `json:"url"`
}

// Room is a physical location popups can be routed to, identified by the
// team numbers seated there.
type Room struct {
	Teams []string `json:"teams"`
}

// PauseWindow suspends match-queue notifications. The scheduler skips its
// pass while Start is non-empty; End is carried for the frontend but not
// interpreted.
type PauseWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Active reports whether match-queue notifications are suspended.
func (w PauseWindow) Active() bool {
	return w.Start != ""
}

// DefaultShow returns the show config used when no config.json exists
// yet: nothing paused, no devices, a five match lookahead.
func DefaultShow() ShowConfig {
	return ShowConfig{
		Paused: map[string]bool{
			CategoryAudio:    false,
			CategoryVideo:    false,
			CategoryLighting: false,
		},
		FieldToCamera:       map[string]string{},
		Rooms:               map[string]Room{},
		ScheduleLeadMatches: 5,
	}
}

// SaveShow writes the show config back to the data directory so operator
// edits such as pause flips survive a restart.
func SaveShow(files *storage.Store, show ShowConfig) error {
	return files.Save(storage.ConfigKey, show)
}

// LoadShow reads the show config from the data directory. A missing or
// unreadable file falls back to defaults so the system comes up even on a
// blank data directory. Keys absent from the file keep their defaults.
func LoadShow(files *storage.Store) ShowConfig {
	show := DefaultShow()
	found, err := files.Load(storage.ConfigKey, &show)
	if err != nil {
		logging.Error().Err(err).Msg("reading show config")
		return DefaultShow()
	}
	if !found {
		logging.Warn().Str("key", storage.ConfigKey).Msg("show config missing or invalid, using defaults")
		return DefaultShow()
	}
	return show
}
