// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package devices

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/marionlk/stagehand/internal/audit"
	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/rules"
)

// StateReader supplies the current field record a dispatch may need.
// Satisfied by fieldstate.Store.
type StateReader interface {
	Get(fieldID int) fieldstate.FieldState
}

// Registry routes resolved actions to device controllers. Pause flags are
// checked on every dispatch and can be flipped at runtime; the camera map
// and controller endpoints are fixed at construction.
type Registry struct {
	controllers map[string]Controller
	cameras     map[string]string
	states      StateReader
	trail       *audit.Trail

	pauseMu sync.RWMutex
	paused  map[string]bool
}

// NewRegistry builds controllers for every device with a configured
// endpoint and seeds the pause flags from the show config.
func NewRegistry(show config.ShowConfig, states StateReader, trail *audit.Trail) *Registry {
	r := &Registry{
		controllers: make(map[string]Controller),
		cameras:     maps.Clone(show.FieldToCamera),
		states:      states,
		trail:       trail,
		paused: map[string]bool{
			config.CategoryAudio:    show.Paused[config.CategoryAudio],
			config.CategoryVideo:    show.Paused[config.CategoryVideo],
			config.CategoryLighting: show.Paused[config.CategoryLighting],
		},
	}

	if show.Devices.Audio.URL != "" {
		r.Register(NewAudio(show.Devices.Audio))
	}
	if show.Devices.Video.URL != "" {
		r.Register(NewVideo(show.Devices.Video))
	}
	if show.Devices.Lighting.URL != "" {
		r.Register(NewLighting(show.Devices.Lighting))
	}

	return r
}

// Register installs a controller under its type, replacing any previous
// one.
func (r *Registry) Register(c Controller) {
	r.controllers[c.Type()] = c
}

// SetPaused flips the dispatch pause flag for a category.
func (r *Registry) SetPaused(category string, paused bool) {
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()
	r.paused[category] = paused
}

// Paused reports whether a category is paused.
func (r *Registry) Paused(category string) bool {
	r.pauseMu.RLock()
	defer r.pauseMu.RUnlock()
	return r.paused[category]
}

// PauseStates returns a copy of all pause flags.
func (r *Registry) PauseStates() map[string]bool {
	r.pauseMu.RLock()
	defer r.pauseMu.RUnlock()
	return maps.Clone(r.paused)
}

// Dispatch sends one action to its controller. The event provides the
// field context for parameter fill-in and may be nil for operator-injected
// actions. Dispatch never returns an error: failed cues are logged,
// audited, and dropped so the show keeps moving.
func (r *Registry) Dispatch(ctx context.Context, action rules.Action, event *events.Event) {
	if action.Type == "" {
		logging.Warn().Msg("Action is missing its type")
		return
	}

	logging.Debug().
		Str("type", action.Type).
		Str("command", action.Command).
		Msg("Executing action")

	switch action.Type {
	case config.CategoryAudio, config.CategoryVideo, config.CategoryLighting:
	default:
		logging.Warn().Str("type", action.Type).Msg("Unknown action type")
		return
	}

	if r.Paused(action.Type) {
		logging.Info().Str("type", action.Type).Msg("Skipping action because its category is paused")
		metrics.RecordActionSkipped(action.Type, "paused")
		r.record(event, action, audit.StatusSkippedPaused, "")
		return
	}

	ctrl, ok := r.controllers[action.Type]
	if !ok {
		logging.Info().Str("type", action.Type).Msg("Skipping action because no controller is configured")
		metrics.RecordActionSkipped(action.Type, "no_controller")
		r.record(event, action, audit.StatusSkippedNoController, "")
		return
	}

	act := action.Clone()

	switch act.Type {
	case config.CategoryAudio:
		r.enrichAudio(&act, event)
	case config.CategoryVideo:
		if !r.enrichVideo(&act, event) {
			metrics.RecordActionSkipped(act.Type, "no_camera")
			r.record(event, act, audit.StatusFailed, "no camera_id")
			return
		}
	}

	start := time.Now()
	if err := ctrl.Execute(ctx, act); err != nil {
		logging.Error().Err(err).
			Str("type", act.Type).
			Str("command", act.Command).
			Msg("Action dispatch failed")
		metrics.RecordActionFailed(act.Type)
		r.record(event, act, audit.StatusFailed, err.Error())
		return
	}

	metrics.RecordActionDispatched(act.Type, act.Command, time.Since(start))
	r.record(event, act, audit.StatusDispatched, audit.OutcomeSuccess)
}

// enrichAudio fills the playlist track number from the field's current
// match name when a play_playlist_track command omits it. The field
// record is re-read so a rule firing late still targets the right track.
func (r *Registry) enrichAudio(act *rules.Action, event *events.Event) {
	if act.Command != "play_playlist_track" || event == nil || r.states == nil {
		return
	}
	fieldID, ok := event.FieldID()
	if !ok || fieldID == 0 {
		return
	}

	matchName := r.states.Get(fieldID).MatchName
	if matchName == "" {
		logging.Warn().
			Str("event_id", event.ID).
			Int("field", fieldID).
			Msg("Could not determine match name to play track")
		return
	}

	number, ok := TrackNumber(matchName)
	if !ok {
		return
	}

	if act.Metadata == nil {
		act.Metadata = make(map[string]any, 1)
	}
	act.Metadata["track_number"] = number
	logging.Info().Int("track_number", number).Msg("Enriched action with track number")
}

// enrichVideo fills camera_id from the field-to-camera map when the rule
// omits it. It reports false when no usable camera id could be found, in
// which case the action must be dropped.
func (r *Registry) enrichVideo(act *rules.Action, event *events.Event) bool {
	_, has := act.Params["camera_id"]
	if !has && event != nil {
		if fieldID, ok := event.FieldID(); ok && fieldID != 0 {
			if cam, ok := r.cameras[strconv.Itoa(fieldID)]; ok && cam != "" {
				if act.Params == nil {
					act.Params = make(map[string]any, 1)
				}
				act.Params["camera_id"] = cam
			}
		}
	}

	if !truthy(act.Params["camera_id"]) {
		eventID := "N/A"
		if event != nil {
			eventID = event.ID
		}
		logging.Warn().Str("event_id", eventID).Msg("No camera_id for video action")
		return false
	}
	return true
}

// truthy mirrors the loose presence check rule files rely on: empty
// strings and zero numbers do not count as a configured value.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func (r *Registry) record(event *events.Event, action rules.Action, status audit.Status, outcome string) {
	if r.trail == nil {
		return
	}

	eventID := ""
	if event != nil {
		eventID = event.ID
	}
	r.trail.Record(audit.Entry{
		EventID:  eventID,
		Status:   status,
		ActionID: action.Type + ":" + action.Command,
		Outcome:  outcome,
	})
}
