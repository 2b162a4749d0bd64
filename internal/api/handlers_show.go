// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/storage"
)

// pauseCategories are the dispatch categories an operator can pause.
var pauseCategories = []string{
	config.CategoryAudio,
	config.CategoryVideo,
	config.CategoryLighting,
}

// ListFields returns every tracked field state sorted by field id.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.fields.States())
}

// ScheduledMatch returns the scheduled match file exactly as the display
// pipeline wrote it, an empty object when nothing is scheduled yet.
func (h *Handler) ScheduledMatch(w http.ResponseWriter, r *http.Request) {
	scheduled := json.RawMessage(`{}`)
	if _, err := h.files.Load(storage.ScheduledMatchKey, &scheduled); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to read scheduled match")
		return
	}
	respondJSON(w, http.StatusOK, scheduled)
}

// SetPause flips per-category dispatch pauses. The body is a partial
// map of category to boolean: only the categories present change. The
// result persists to the show config so it survives a restart, and the
// full pause state comes back in the response.
func (h *Handler) SetPause(w http.ResponseWriter, r *http.Request) {
	var req map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req == nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be a JSON object of category to boolean")
		return
	}

	for category := range req {
		if !slices.Contains(pauseCategories, category) {
			respondError(w, http.StatusBadRequest, "UNKNOWN_CATEGORY", fmt.Sprintf("Unknown pause category %q", category))
			return
		}
	}

	for category, paused := range req {
		h.registry.SetPaused(category, paused)
	}

	show := config.LoadShow(h.files)
	show.Paused = h.registry.PauseStates()
	if err := config.SaveShow(h.files, show); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to persist pause state")
		return
	}

	respondJSON(w, http.StatusOK, h.registry.PauseStates())
}

// ResetSchedule clears the scheduler's memory between divisions or after
// a schedule re-import: the cached schedule and the notified set are
// deleted and the popup list is emptied. The fetcher and scheduler
// repopulate on their next passes.
func (h *Handler) ResetSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(storage.ScheduleKey); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to delete schedule")
		return
	}
	if err := h.files.Delete(storage.NotifiedKey); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to delete notified set")
		return
	}
	if err := h.files.Save(storage.PopupsKey, []json.RawMessage{}); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to clear popups")
		return
	}
	metrics.SetPopupsActive(0)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Schedule state reset",
	})
}
