// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/events"
	"github.com/marionlk/stagehand/internal/validation"
)

// injectEventRequest mirrors the wire event shape: type is required,
// field and payload are optional.
type injectEventRequest struct {
	Type    string         `json:"type" validate:"required,min=1"`
	Field   *int           `json:"field" validate:"omitempty,gte=0"`
	Payload map[string]any `json:"payload"`
}

// InjectEvent places an operator-supplied event onto the inbound queue.
// The response is 202: processing happens asynchronously and failures
// surface in the audit trail, not here.
func (h *Handler) InjectEvent(w http.ResponseWriter, r *http.Request) {
	var req injectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	var event *events.Event
	if req.Field != nil {
		event = events.NewFieldEvent(req.Type, *req.Field, req.Payload)
	} else {
		event = events.New(req.Type, req.Payload)
	}

	if err := h.bus.Publish(r.Context(), event); err != nil {
		respondError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Event queue is not accepting events")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

// TriggerAction wraps the raw request body as a manual_action event.
// The body is whatever JSON object the device controllers understand;
// the processor decodes and dispatches it without a rule lookup.
func (h *Handler) TriggerAction(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be a JSON object")
		return
	}

	event := events.New(events.TypeManualAction, payload)
	if err := h.bus.Publish(r.Context(), event); err != nil {
		respondError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Event queue is not accepting events")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"event_id": event.ID,
	})
}
