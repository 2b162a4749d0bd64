// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/models"
	"github.com/marionlk/stagehand/internal/storage"
	"github.com/marionlk/stagehand/internal/validation"
)

// sendPopupRequest is the operator popup body. Only room_ids is
// required; the rest defaults to a 15 second modal.
type sendPopupRequest struct {
	RoomIDs  []string `json:"room_ids" validate:"required,min=1,dive,required"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Duration int      `json:"duration" validate:"omitempty,gte=1,lte=3600"`
	Type     string   `json:"type" validate:"omitempty,oneof=modal toast"`
}

// ListPopups returns the stored popup list exactly as written, an empty
// list when the file does not exist yet. Entries are kept as raw JSON so
// fields the frontend or operators attach pass through untouched.
func (h *Handler) ListPopups(w http.ResponseWriter, r *http.Request) {
	popups := []json.RawMessage{}
	if _, err := h.files.Load(storage.PopupsKey, &popups); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to read popups")
		return
	}
	respondJSON(w, http.StatusOK, popups)
}

// SendPopup queues an operator popup as a manual_popup event. The
// processor appends it to the popup list in arrival order with
// everything else.
func (h *Handler) SendPopup(w http.ResponseWriter, r *http.Request) {
	var req sendPopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	if req.Title == "" {
		req.Title = "Notification"
	}
	if req.Duration == 0 {
		req.Duration = 15
	}
	if req.Type == "" {
		req.Type = models.PopupTypeModal
	}

	popupID := uuid.New().String()
	event := events.New(events.TypeManualPopup, map[string]any{
		"id":       popupID,
		"room_ids": req.RoomIDs,
		"title":    req.Title,
		"message":  req.Message,
		"duration": req.Duration,
		"type":     req.Type,
		"source":   models.PopupSourceManual,
	})

	if err := h.bus.Publish(r.Context(), event); err != nil {
		respondError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Event queue is not accepting events")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"event_id": event.ID,
		"popup_id": popupID,
	})
}

// DismissPopup removes one popup by id. Dismissing an unknown id is a
// 404 so the frontend can drop stale entries from its own cache.
func (h *Handler) DismissPopup(w http.ResponseWriter, r *http.Request) {
	popupID := chi.URLParam(r, "id")

	found := false
	remaining := 0
	var popups []json.RawMessage
	err := h.files.Update(storage.PopupsKey, &popups, func(loaded bool) error {
		if !loaded {
			return storage.ErrSkipWrite
		}
		kept := make([]json.RawMessage, 0, len(popups))
		for _, raw := range popups {
			var peek struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &peek); err == nil && peek.ID == popupID {
				found = true
				continue
			}
			kept = append(kept, raw)
		}
		if !found {
			return storage.ErrSkipWrite
		}
		popups = kept
		remaining = len(kept)
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to update popups")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "POPUP_NOT_FOUND", "No popup with that id")
		return
	}

	metrics.SetPopupsActive(remaining)
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
